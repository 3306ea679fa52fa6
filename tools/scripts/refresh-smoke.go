// Package main provides a CI-friendly smoke test for the authd refresh flow.
//
// It validates:
//   - boot without a refresh cookie reports not authenticated
//   - login stores an access token and a refresh cookie
//   - a protected call succeeds with the access token
//   - N concurrent calls after losing the access token share one refresh
//   - logout leaves the client unauthenticated
//
// The server must serve the refresh cookie without the Secure attribute
// (AUTHD_COOKIE_SECURE=false) when -url is plain http.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/onpaws/refresh-token-postgraphile/cmd/client"
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL     = flag.String("url", envOr("AUTHD_SMOKE_URL", "http://127.0.0.1:8080"), "authd base URL")
		email       = flag.String("email", envOr("AUTHD_DEV_SUBJECT_EMAIL", ""), "subject email")
		password    = flag.String("password", envOr("AUTHD_DEV_SUBJECT_PASSWORD", ""), "subject password")
		concurrency = flag.Int("n", 8, "concurrent protected calls during the refresh check")
		timeout     = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose     = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if *email == "" || *password == "" {
		fatalf("-email and -password are required (or AUTHD_DEV_SUBJECT_EMAIL/PASSWORD)")
	}
	if *concurrency < 2 {
		fatalf("-n must be at least 2")
	}

	c, err := client.New(*baseURL, client.WithRefreshTimeout(*timeout))
	if err != nil {
		fatalf("client: %v", err)
	}
	root := context.Background()

	step(root, *timeout, func(ctx context.Context) {
		if err := c.Boot(ctx); !errors.Is(err, client.ErrNotAuthenticated) {
			fatalf("boot without cookie: want ErrNotAuthenticated, got %v", err)
		}
	})

	step(root, *timeout, func(ctx context.Context) {
		if err := c.Login(ctx, *email, *password); err != nil {
			fatalf("login: %v", err)
		}
	})
	if *verbose {
		fmt.Printf("logged in: subject=%s access_exp=%s\n", c.Session().Subject(), c.Session().ExpiresAt().Format(time.RFC3339))
	}

	step(root, *timeout, func(ctx context.Context) { mustMe(ctx, c) })

	// Dropping the in-memory access token forces the next calls through refresh.
	c.Session().Clear()
	before := c.RefreshCount()

	step(root, *timeout, func(ctx context.Context) {
		var wg sync.WaitGroup
		errs := make(chan error, *concurrency)
		for i := 0; i < *concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := me(ctx, c); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			fatalf("concurrent call: %v", err)
		}
	})

	if got := c.RefreshCount() - before; got != 1 {
		fatalf("refresh calls=%d want 1 for %d concurrent requests", got, *concurrency)
	}

	step(root, *timeout, func(ctx context.Context) {
		if err := c.Logout(ctx); err != nil {
			fatalf("logout: %v", err)
		}
		if err := me(ctx, c); !errors.Is(err, client.ErrNotAuthenticated) {
			fatalf("call after logout: want ErrNotAuthenticated, got %v", err)
		}
	})

	fmt.Printf("OK: url=%s concurrent=%d refreshes=%d\n", *baseURL, *concurrency, c.RefreshCount())
}

func step(parent context.Context, timeout time.Duration, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	fn(ctx)
}

func mustMe(ctx context.Context, c *client.Client) {
	if err := me(ctx, c); err != nil {
		fatalf("protected call: %v", err)
	}
}

func me(ctx context.Context, c *client.Client) error {
	req, err := c.NewRequest(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		return err
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("/me status=%d", res.StatusCode)
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
