package authapi

import (
	"net/http"
	"strings"
	"time"
)

func (h *Handler) refreshCookie(value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.RefreshCookieName,
		Value:    value,
		Path:     h.cfg.RefreshPath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	}
}

// setRefreshCookie replaces the client's refresh cookie. Same name and
// path means the previous value is overwritten, never accumulated.
func (h *Handler) setRefreshCookie(w http.ResponseWriter, value string, exp time.Time) {
	if h == nil || w == nil {
		return
	}
	http.SetCookie(w, h.refreshCookie(value, exp))
}

func (h *Handler) expireRefreshCookie(w http.ResponseWriter) {
	if h == nil || w == nil {
		return
	}
	c := h.refreshCookie("", time.Unix(0, 0).UTC())
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func (h *Handler) refreshTokenFromCookie(r *http.Request) (string, bool) {
	if h == nil || r == nil {
		return "", false
	}
	c, err := r.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}
