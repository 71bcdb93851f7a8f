// Package session holds the ephemeral per-user routing and conversation
// context. It is a sliding-TTL key/value surface: losing it degrades routing
// to the menu fallback but never loses qualification data, which lives in
// the durable store.
package session

import (
	"context"
	"fmt"
	"time"
)

// Route is the remembered binding of a channel identity to a tenant and
// vertical, set by a deep link or a menu selection.
type Route struct {
	TenantID int64  `json:"tenant_id"`
	Vertical string `json:"vertical"`
	Hint     string `json:"hint,omitempty"`
}

// Context is free-form per-conversation scratch data handlers may keep
// between turns.
type Context struct {
	Data map[string]string `json:"data,omitempty"`
}

// Cache is the session cache interface. Implementations must treat reads of
// absent keys as (nil, nil): absence is not an error.
type Cache interface {
	GetRoute(ctx context.Context, channelIdentity string) (*Route, error)
	// SetRoute stores the route and starts the TTL window.
	SetRoute(ctx context.Context, channelIdentity string, route *Route) error
	// TouchRoute extends the TTL without rewriting the value (sliding window).
	TouchRoute(ctx context.Context, channelIdentity string) error
	DeleteRoute(ctx context.Context, channelIdentity string) error

	GetContext(ctx context.Context, tenantID int64, channelIdentity string) (*Context, error)
	SetContext(ctx context.Context, tenantID int64, channelIdentity string, sc *Context) error

	Close() error
}

// DefaultTTL is the idle eviction window for sessions and routes.
const DefaultTTL = 24 * time.Hour

func routeKey(channelIdentity string) string {
	return "route:" + channelIdentity
}

func sessionKey(tenantID int64, channelIdentity string) string {
	return fmt.Sprintf("session:%d:%s", tenantID, channelIdentity)
}
