package authapi

import (
	"context"
	"log/slog"
	"net"
	"strings"

	"github.com/onpaws/refresh-token-postgraphile/cmd/security/secret"
)

// Audit events go to the structured log under "auth.audit". Raw tokens are
// never logged; a keyed digest lets operators follow one refresh cookie.

func (h *Handler) auditLogin(ctx context.Context, subjectID string, ip net.IP, ua string, outcome string) {
	h.audit(ctx, "auth.login", ip, ua,
		slog.String("subject_id", subjectID),
		slog.String("outcome", outcome))
}

func (h *Handler) auditRefresh(ctx context.Context, subjectID, presented string, ip net.IP, ua string, outcome string) {
	attrs := []slog.Attr{
		slog.String("subject_id", subjectID),
		slog.String("outcome", outcome),
	}
	if presented != "" {
		attrs = append(attrs, slog.String("refresh_digest", secret.Digest(presented, h.digestKey)))
	}
	h.audit(ctx, "auth.refresh", ip, ua, attrs...)
}

func (h *Handler) auditLogout(ctx context.Context, ip net.IP, ua string) {
	h.audit(ctx, "auth.logout", ip, ua)
}

func (h *Handler) audit(ctx context.Context, action string, ip net.IP, ua string, attrs ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	all := make([]slog.Attr, 0, len(attrs)+3)
	all = append(all, slog.String("action", action))
	if ip != nil {
		all = append(all, slog.String("ip", ip.String()))
	}
	if ua = strings.TrimSpace(ua); ua != "" {
		all = append(all, slog.String("user_agent", ua))
	}
	all = append(all, attrs...)

	h.log.LogAttrs(ctx, slog.LevelInfo, "auth.audit", all...)
}
