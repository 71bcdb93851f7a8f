package dialog

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/session"
	"github.com/propflow/propflow/store"
)

// deepLinkPattern is the payload grammar start_<vertical>(_<hint>)?.
var deepLinkPattern = regexp.MustCompile(`^start_([a-z0-9]+)(?:_([a-z0-9]+))?$`)

// RouteResult is the router's decision for one inbound message.
type RouteResult struct {
	Tenant   *store.Tenant
	Vertical string
	Hint     string
	Routed   bool
	// Menu is set instead of a routed tuple when the message falls back to
	// the vertical menu. No Lead is created on that path.
	Menu *chat_apps.BotResponse
}

// Router binds an inbound channel identity to a (tenant, vertical) session.
// Precedence: deep link > session memory > menu fallback.
type Router struct {
	store    *store.Store
	sessions session.Cache
}

func NewRouter(s *store.Store, sessions session.Cache) *Router {
	return &Router{store: s, sessions: sessions}
}

// Route resolves the tenant and vertical for a message. A deep link
// overwrites the remembered mapping; a remembered mapping slides its TTL; an
// unroutable message yields the menu without creating a lead.
func (r *Router) Route(ctx context.Context, msg *chat_apps.Message) (*RouteResult, error) {
	tenant, err := r.resolveTenant(ctx, msg)
	if err != nil {
		return nil, err
	}

	// 1. Deep link, from a menu button press, the raw text, or the /start
	// payload. Menu selections arrive as Button with empty Text.
	payload := strings.TrimSpace(strings.ToLower(msg.Text))
	if msg.Button != "" {
		payload = strings.TrimSpace(strings.ToLower(msg.Button))
	}
	if arg := msg.CommandArgument("/start"); arg != "" {
		payload = "start_" + strings.TrimSpace(strings.ToLower(arg))
		payload = strings.Replace(payload, "start_start_", "start_", 1)
	}
	if m := deepLinkPattern.FindStringSubmatch(payload); m != nil {
		vertical, hint := m[1], m[2]
		if tenant != nil {
			if _, ok := tenant.VerticalByName(vertical); ok {
				r.remember(ctx, msg.ChannelIdentity, tenant.ID, vertical, hint)
				return &RouteResult{Tenant: tenant, Vertical: vertical, Hint: hint, Routed: true}, nil
			}
		}
		slog.Warn("router: deep link with unknown vertical",
			"vertical", vertical,
			"channel_identity", msg.ChannelIdentity,
		)
		return r.menuFallback(tenant, msg)
	}

	// 2. Registered substring keywords.
	if tenant != nil && msg.Text != "" {
		lower := strings.ToLower(msg.Text)
		for _, v := range tenant.Verticals {
			for _, kw := range v.Keywords {
				if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
					r.remember(ctx, msg.ChannelIdentity, tenant.ID, v.Name, "")
					return &RouteResult{Tenant: tenant, Vertical: v.Name, Routed: true}, nil
				}
			}
		}
	}

	// 3. Channel-announced vertical, ahead of session memory: the gateway's
	// binding survives a cache outage or an expired TTL.
	if tenant != nil && msg.Vertical != "" {
		if _, ok := tenant.VerticalByName(msg.Vertical); ok {
			r.remember(ctx, msg.ChannelIdentity, tenant.ID, msg.Vertical, "")
			return &RouteResult{Tenant: tenant, Vertical: msg.Vertical, Routed: true}, nil
		}
		slog.Warn("router: channel announced unknown vertical",
			"vertical", msg.Vertical,
			"channel_identity", msg.ChannelIdentity,
		)
	}

	// 4. Session memory, sliding TTL on each hit.
	route, err := r.sessions.GetRoute(ctx, msg.ChannelIdentity)
	if err != nil {
		// Cache down: treat as empty, skip TTL extension for this turn.
		slog.Warn("router: session cache unavailable", "error", err)
		route = nil
	}
	if route != nil {
		if tenant == nil {
			tenant, err = r.store.GetTenant(ctx, route.TenantID)
			if err != nil {
				return nil, fatalf(err, "failed to load tenant %d", route.TenantID)
			}
		}
		if tenant != nil && tenant.ID == route.TenantID {
			if err := r.sessions.TouchRoute(ctx, msg.ChannelIdentity); err != nil {
				slog.Warn("router: failed to extend route ttl", "error", err)
			}
			return &RouteResult{Tenant: tenant, Vertical: route.Vertical, Hint: route.Hint, Routed: true}, nil
		}
	}

	// Telegram webhooks are tenant-addressed, so a bare /start still routes
	// to the tenant's first vertical.
	if tenant != nil && msg.IsCommand("/start") && len(tenant.Verticals) > 0 {
		vertical := tenant.Verticals[0].Name
		r.remember(ctx, msg.ChannelIdentity, tenant.ID, vertical, "")
		return &RouteResult{Tenant: tenant, Vertical: vertical, Routed: true}, nil
	}

	return r.menuFallback(tenant, msg)
}

func (r *Router) resolveTenant(ctx context.Context, msg *chat_apps.Message) (*store.Tenant, error) {
	if msg.TenantID == 0 {
		return nil, nil
	}
	tenant, err := r.store.GetTenant(ctx, msg.TenantID)
	if err != nil {
		return nil, fatalf(err, "failed to load tenant %d", msg.TenantID)
	}
	if tenant == nil {
		return nil, &Error{Kind: KindConfiguration, Message: "unknown tenant"}
	}
	return tenant, nil
}

func (r *Router) remember(ctx context.Context, channelIdentity string, tenantID int64, vertical, hint string) {
	err := r.sessions.SetRoute(ctx, channelIdentity, &session.Route{
		TenantID: tenantID,
		Vertical: vertical,
		Hint:     hint,
	})
	if err != nil {
		slog.Warn("router: failed to persist route", "error", err)
	}
}

// menuFallback emits the language-aware vertical menu. Nil tenant means the
// message is a non-routable personal message; it is dropped silently.
func (r *Router) menuFallback(tenant *store.Tenant, msg *chat_apps.Message) (*RouteResult, error) {
	if tenant == nil {
		return &RouteResult{}, nil
	}
	lang := msg.LocaleHint
	if !isSupportedLanguage(lang) {
		lang = tenant.DefaultLanguage
	}
	if !isSupportedLanguage(lang) {
		lang = "en"
	}
	menu := &chat_apps.BotResponse{Text: T(lang, "main_menu")}
	for _, v := range tenant.Verticals {
		menu.Buttons = append(menu.Buttons, chat_apps.Button{
			Label:   capitalize(v.Name),
			Payload: "start_" + v.Name,
		})
	}
	return &RouteResult{Tenant: tenant, Menu: menu}, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
