package authapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testCookieHandler() *Handler {
	cfg := DefaultConfig()
	cfg.CookieDomain = "example.com"
	return &Handler{cfg: cfg}
}

func TestSetRefreshCookie_Attributes(t *testing.T) {
	h := testCookieHandler()

	rr := httptest.NewRecorder()
	exp := time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Second)
	h.setRefreshCookie(rr, "refresh-token-123", exp)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "qid" || c.Value != "refresh-token-123" {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("cookie must be HttpOnly, Secure, SameSite=Strict: %+v", c)
	}
	if c.Path != "/access_token" {
		t.Fatalf("cookie must be scoped to the refresh path, got %q", c.Path)
	}
	if !c.Expires.Equal(exp) {
		t.Fatalf("expires: got %s want %s", c.Expires, exp)
	}
}

func TestExpireRefreshCookie(t *testing.T) {
	h := testCookieHandler()

	rr := httptest.NewRecorder()
	h.expireRefreshCookie(rr)

	c := rr.Result().Cookies()[0]
	if c.Name != "qid" || c.Value != "" || c.MaxAge >= 0 {
		t.Fatalf("expected expired cookie, got %+v", c)
	}
	if c.Path != "/access_token" {
		t.Fatalf("expiry must target the same path, got %q", c.Path)
	}
}

func TestRefreshTokenFromCookie(t *testing.T) {
	h := testCookieHandler()

	req := httptest.NewRequest(http.MethodPost, "/access_token", nil)
	if _, ok := h.refreshTokenFromCookie(req); ok {
		t.Fatalf("expected no token without cookie")
	}

	req.AddCookie(&http.Cookie{Name: "qid", Value: " tok-123 "})
	tok, ok := h.refreshTokenFromCookie(req)
	if !ok || tok != "tok-123" {
		t.Fatalf("unexpected token: %q %v", tok, ok)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Fatalf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "garbage, 203.0.113.9, 10.0.0.2")

	if ip := clientIP(req, false); ip.String() != "10.0.0.1" {
		t.Fatalf("untrusted proxy: got %v", ip)
	}
	if ip := clientIP(req, true); ip.String() != "203.0.113.9" {
		t.Fatalf("trusted proxy: got %v", ip)
	}
}

func TestNewHandler_ForcesRestrictiveSameSite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CookieSameSite = http.SameSiteNoneMode

	h, err := NewHandler(nil, brokenSessions{}, cfg)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	rr := httptest.NewRecorder()
	h.setRefreshCookie(rr, "v", time.Now().Add(time.Hour))

	if got := rr.Result().Cookies()[0].SameSite; got != http.SameSiteStrictMode {
		t.Fatalf("SameSite=%v want Strict", got)
	}
}

func TestThrottleKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/authenticate", nil)

	req.RemoteAddr = "198.51.100.7:4444"
	if got := throttleKey(req, clientIP(req, false)); got != "198.51.100.7" {
		t.Fatalf("ip key=%q", got)
	}

	// Peers without a parseable IP must not share one bucket.
	req.RemoteAddr = "peer-a"
	a := throttleKey(req, clientIP(req, false))
	req.RemoteAddr = "peer-b"
	b := throttleKey(req, clientIP(req, false))
	if a == b || a == "<nil>" {
		t.Fatalf("fallback keys collide: %q %q", a, b)
	}
}
