package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth endpoint paths and refresh cookie attributes.
type Config struct {
	RefreshPath      string
	AuthenticatePath string
	LogoutPath       string

	// RefreshCookieName is scoped to RefreshPath so the browser (or a
	// cookie jar) only attaches it to refresh calls.
	RefreshCookieName string
	CookieSecure      bool
	CookieDomain      string
	CookieSameSite    http.SameSite

	TrustProxy   bool
	MaxBodyBytes int64

	// LoginRateLimit caps credential attempts per client IP within
	// LoginRateWindow. Zero disables the limit.
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RefreshPath:       "/access_token",
		AuthenticatePath:  "/authenticate",
		LogoutPath:        "/logout",
		RefreshCookieName: "qid",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteStrictMode,
		MaxBodyBytes:      64 << 10,
		LoginRateLimit:    10,
		LoginRateWindow:   time.Minute,
	}
}

// LoadConfigFromEnv loads auth API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		RefreshPath:       envPath("AUTHD_REFRESH_PATH", def.RefreshPath),
		AuthenticatePath:  envPath("AUTHD_AUTHENTICATE_PATH", def.AuthenticatePath),
		LogoutPath:        envPath("AUTHD_LOGOUT_PATH", def.LogoutPath),
		RefreshCookieName: envString("AUTHD_REFRESH_COOKIE_NAME", def.RefreshCookieName),
		CookieSecure:      envBool("AUTHD_COOKIE_SECURE", def.CookieSecure),
		CookieDomain:      envString("AUTHD_COOKIE_DOMAIN", ""),
		CookieSameSite:    envSameSite("AUTHD_COOKIE_SAMESITE", def.CookieSameSite),
		TrustProxy:        envBool("AUTHD_TRUST_PROXY", false),
		MaxBodyBytes:      envInt64("AUTHD_MAX_BODY_BYTES", def.MaxBodyBytes),
		LoginRateLimit:    envLimit("AUTHD_LOGIN_RATE_LIMIT", def.LoginRateLimit),
		LoginRateWindow:   envDuration("AUTHD_LOGIN_RATE_WINDOW", def.LoginRateWindow),
	}
	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envPath(key, def string) string {
	v := envString(key, def)
	if !strings.HasPrefix(v, "/") {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// envLimit accepts zero, which disables the limit.
func envLimit(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// restrictiveSameSite maps anything but Lax to Strict.
func restrictiveSameSite(m http.SameSite) http.SameSite {
	if m == http.SameSiteLaxMode {
		return m
	}
	return http.SameSiteStrictMode
}

func envSameSite(key string, def http.SameSite) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		// "none" included: the refresh cookie must never ride cross-site requests.
		return def
	}
}
