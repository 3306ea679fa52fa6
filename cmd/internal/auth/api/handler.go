package authapi

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/onpaws/refresh-token-postgraphile/cmd/internal/auth/session"
	"github.com/onpaws/refresh-token-postgraphile/cmd/internal/auth/token"
)

// Sessions is the session behavior the handler needs.
type Sessions interface {
	Authenticate(ctx context.Context, email, password string) (session.Issued, error)
	Refresh(ctx context.Context, refreshToken string) (session.Issued, error)
	ValidateAccessToken(tok string) (token.Claims, error)
}

// Handler wires the auth endpoints to the session service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions Sessions
	metrics  *Metrics
	limiter  *loginLimiter

	digestKey []byte
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics attaches outcome counters.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) {
		if h == nil || m == nil {
			return
		}
		h.metrics = m
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, sessions Sessions, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	cfg.CookieSameSite = restrictiveSameSite(cfg.CookieSameSite)

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	h := &Handler{
		log:       log,
		cfg:       cfg,
		sessions:  sessions,
		limiter:   newLoginLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow, nil),
		digestKey: key,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc(h.cfg.RefreshPath, h.handleRefresh)
	mux.HandleFunc(h.cfg.AuthenticatePath, h.handleAuthenticate)
	mux.HandleFunc(h.cfg.LogoutPath, h.handleLogout)
	mux.Handle("/me", h.RequireAuth(http.HandlerFunc(h.handleMe)))
}

// ---- handlers ----

// handleRefresh exchanges the refresh cookie for a new access token and a
// rotated cookie. Every session-level failure answers 200 {"ok":false};
// only store faults answer 500.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()
	presented, _ := h.refreshTokenFromCookie(r)

	issued, err := h.sessions.Refresh(ctx, presented)
	outcome := session.FailureKind(err)
	h.metrics.observeRefresh(outcome)

	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoSession):
			// Nothing to expire.
		case errors.Is(err, session.ErrInvalidSession), errors.Is(err, session.ErrSubjectGone):
			h.expireRefreshCookie(w)
			h.auditRefresh(ctx, "", presented, ip, ua, outcome)
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeJSON(w, http.StatusInternalServerError, accessTokenResponse{})
			return
		}
		h.log.Debug("auth.refresh.rejected", "reason", outcome)
		writeJSON(w, http.StatusOK, accessTokenResponse{})
		return
	}

	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp)
	h.auditRefresh(ctx, issued.SubjectID, presented, ip, ua, outcome)
	writeJSON(w, http.StatusOK, accessTokenResponse{OK: true, AccessToken: issued.AccessToken})
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	if ok, retry := h.limiter.allow(throttleKey(r, ip)); !ok {
		h.metrics.observeLogin("rate_limited")
		h.auditLogin(ctx, "", ip, ua, "rate_limited")
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	var req authenticateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	issued, err := h.sessions.Authenticate(ctx, email, req.Password)
	outcome := session.FailureKind(err)
	h.metrics.observeLogin(outcome)

	if err != nil {
		if errors.Is(err, session.ErrAuthRejected) {
			h.auditLogin(ctx, "", ip, ua, outcome)
			writeError(w, http.StatusUnauthorized, "auth_rejected", "invalid credentials")
			return
		}
		h.log.Error("auth.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp)
	h.auditLogin(ctx, issued.SubjectID, ip, ua, outcome)
	writeJSON(w, http.StatusOK, accessTokenResponse{OK: true, AccessToken: issued.AccessToken})
}

// handleLogout expires the refresh cookie. Tokens are stateless, so an
// already-copied refresh token stays valid until its exp.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	h.expireRefreshCookie(w)
	h.auditLogout(r.Context(), clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing access token")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{SubjectID: claims.SubjectID(), Role: claims.Role})
}

// ---- middleware ----

type claimsKey struct{}

// RequireAuth rejects requests without a valid bearer access token and
// stores the verified claims in the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			w.Header().Set("WWW-Authenticate", `Bearer`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing access token")
			return
		}
		claims, err := h.sessions.ValidateAccessToken(tok)
		if err != nil {
			code := "invalid_token"
			if errors.Is(err, token.ErrExpired) {
				code = "token_expired"
			}
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, code, "access token rejected")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (token.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(token.Claims)
	return c, ok
}

// ---- helpers ----

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	scheme, rest, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(rest)
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

// throttleKey identifies the peer for the login limiter. Without a
// parseable IP the raw remote address is used.
func throttleKey(r *http.Request, ip net.IP) string {
	if ip != nil {
		return ip.String()
	}
	return "addr:" + r.RemoteAddr
}

// parseForwardedIP returns the left-most parseable address.
func parseForwardedIP(xff string) net.IP {
	for _, part := range strings.Split(xff, ",") {
		if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
			return ip
		}
	}
	return nil
}
