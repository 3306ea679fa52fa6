package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Config controls endpoint paths and refresh behavior.
type Config struct {
	RefreshPath      string
	AuthenticatePath string
	LogoutPath       string

	// RefreshTimeout bounds one shared refresh.
	RefreshTimeout time.Duration

	// HTTPClient is copied; a cookie jar is added when it has none.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// DefaultConfig mirrors the server's default paths.
func DefaultConfig() Config {
	return Config{
		RefreshPath:      "/access_token",
		AuthenticatePath: "/authenticate",
		LogoutPath:       "/logout",
		RefreshTimeout:   10 * time.Second,
	}
}

// Option customizes Config.
type Option func(*Config)

func WithHTTPClient(hc *http.Client) Option { return func(c *Config) { c.HTTPClient = hc } }

func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

func WithRefreshTimeout(d time.Duration) Option { return func(c *Config) { c.RefreshTimeout = d } }

// WithClock sets the clock used to judge token expiry.
func WithClock(now func() time.Time) Option { return func(c *Config) { c.Now = now } }

// WithPaths overrides the auth endpoint paths. Empty values keep defaults.
func WithPaths(refresh, authenticate, logout string) Option {
	return func(c *Config) {
		if refresh != "" {
			c.RefreshPath = refresh
		}
		if authenticate != "" {
			c.AuthenticatePath = authenticate
		}
		if logout != "" {
			c.LogoutPath = logout
		}
	}
}

// Client issues authenticated requests against one server.
type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	log     *slog.Logger
	session *Session

	refresher *refresher
	pipeline  *Pipeline
}

// New builds a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", baseURL)
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultConfig().RefreshTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	hc := &http.Client{Timeout: 30 * time.Second}
	if cfg.HTTPClient != nil {
		cp := *cfg.HTTPClient
		hc = &cp
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}

	c := &Client{
		cfg:     cfg,
		base:    base,
		http:    hc,
		log:     cfg.Logger,
		session: NewSession(cfg.Now),
	}
	c.refresher = newRefresher(c.session, c.fetchAccessToken, cfg.RefreshTimeout, c.log)
	c.pipeline = NewPipeline(transport{http: hc},
		validityStage{session: c.session},
		refreshStage{refresher: c.refresher},
		authStage{},
		observeStage{log: c.log},
	)
	return c, nil
}

// Session exposes the in-memory token holder.
func (c *Client) Session() *Session { return c.session }

// Pipeline exposes the request pipeline.
func (c *Client) Pipeline() *Pipeline { return c.pipeline }

// RefreshCount reports how many network refreshes this client started.
func (c *Client) RefreshCount() int64 { return c.refresher.Calls() }

// Jar returns the cookie jar holding the refresh cookie.
func (c *Client) Jar() http.CookieJar { return c.http.Jar }

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

// NewRequest builds a request for path on the configured server.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.URL(path), body)
}

// Do sends req with a valid access token, refreshing first when needed.
// Protocol errors (status >= 400) are returned as responses, not errors.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("client: nil request")
	}
	return c.pipeline.Do(&Call{Request: req})
}

// Boot restores a session from the refresh cookie, if any. It returns
// ErrNotAuthenticated when the server holds no session for this client.
func (c *Client) Boot(ctx context.Context) error {
	if _, st := c.session.Check(); st == StateValid {
		return nil
	}
	_, err := c.refresher.Refresh(ctx)
	return err
}

// Login exchanges credentials for an access token and a refresh cookie.
// Storing the token advances the session epoch, so a refresh still in
// flight cannot overwrite it: that refresh's callers get the login token.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}
	req, err := c.NewRequest(ctx, http.MethodPost, c.cfg.AuthenticatePath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "login", Err: err}
	}
	defer drain(res)

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		c.session.Clear()
		return ErrAuthRejected
	case res.StatusCode != http.StatusOK:
		return &TransportError{Op: "login", Status: res.StatusCode}
	}

	tok, err := decodeAccessToken(res.Body)
	if err != nil {
		return err
	}
	return c.session.Set(tok)
}

// Logout clears the local session and asks the server to expire the
// refresh cookie. The local session is cleared even if the call fails.
func (c *Client) Logout(ctx context.Context) error {
	c.session.Clear()

	req, err := c.NewRequest(ctx, http.MethodPost, c.cfg.LogoutPath, nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "logout", Err: err}
	}
	defer drain(res)

	if res.StatusCode >= 300 {
		return &TransportError{Op: "logout", Status: res.StatusCode}
	}
	return nil
}

// fetchAccessToken is the single network refresh. The jar attaches the
// refresh cookie because the request targets the cookie's path.
func (c *Client) fetchAccessToken(ctx context.Context) (string, error) {
	req, err := c.NewRequest(ctx, http.MethodPost, c.cfg.RefreshPath, nil)
	if err != nil {
		return "", err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{Op: "refresh", Err: err}
	}
	defer drain(res)

	if res.StatusCode != http.StatusOK {
		return "", &TransportError{Op: "refresh", Status: res.StatusCode}
	}
	return decodeAccessToken(res.Body)
}

type accessTokenBody struct {
	OK          bool   `json:"ok"`
	AccessToken string `json:"access_token"`
}

func decodeAccessToken(r io.Reader) (string, error) {
	var body accessTokenBody
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&body); err != nil {
		return "", &TransportError{Op: "decode", Err: err}
	}
	if !body.OK || body.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	return body.AccessToken, nil
}

func drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
	_ = res.Body.Close()
}
