// Package channels provides the ChatChannel interface implemented by each
// transport adapter and the registry the server and workers send through.
package channels

import (
	"context"
	"io"
	"sync"

	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/store"
)

// ChatChannel is the contract every transport adapter implements.
type ChatChannel interface {
	// Name returns the channel identifier ("telegram", "whatsapp").
	Name() store.Channel

	// ParseMessage normalizes an inbound webhook payload. Adapter-specific
	// headers are passed through for gateways that route via headers.
	ParseMessage(ctx context.Context, headers map[string]string, payload []byte) (*chat_apps.Message, error)

	// SendResponse renders and delivers a BotResponse, including its admin
	// alert when present. The alert is sent before the user-facing text.
	SendResponse(ctx context.Context, channelIdentity string, resp *chat_apps.BotResponse) error

	// Close releases adapter resources.
	Close() error
}

// Registry holds the active adapters. Concurrent-safe.
type Registry struct {
	mu       sync.RWMutex
	channels map[store.Channel]ChatChannel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[store.Channel]ChatChannel)}
}

func (r *Registry) Register(ch ChatChannel) {
	r.mu.Lock()
	r.channels[ch.Name()] = ch
	r.mu.Unlock()
}

// Get returns the adapter for a channel, or nil if not registered.
func (r *Registry) Get(channel store.Channel) ChatChannel {
	r.mu.RLock()
	ch := r.channels[channel]
	r.mu.RUnlock()
	return ch
}

// Send delivers a response through the adapter registered for the channel.
// Workers use this as their only outbound path.
func (r *Registry) Send(ctx context.Context, channel store.Channel, channelIdentity string, resp *chat_apps.BotResponse) error {
	ch := r.Get(channel)
	if ch == nil {
		return ErrNoChannel
	}
	return ch.SendResponse(ctx, channelIdentity, resp)
}

var _ io.Closer = (*Registry)(nil)

// Close closes all registered adapters, returning the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, ch := range r.channels {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Errors
var (
	ErrNoChannel      = &ChannelError{Code: "NO_CHANNEL", Message: "no adapter registered for channel"}
	ErrInvalidPayload = &ChannelError{Code: "INVALID_PAYLOAD", Message: "could not parse webhook payload"}
	ErrUnroutable     = &ChannelError{Code: "UNROUTABLE", Message: "message carries no tenant routing"}
)

// ChannelError represents an error in channel operations.
type ChannelError struct {
	Code    string
	Message string
	Err     error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the delivery can be
// retried.
func (e *ChannelError) IsRetryable() bool {
	switch e.Code {
	case "NO_CHANNEL", "INVALID_PAYLOAD", "UNROUTABLE":
		return false
	default:
		return true
	}
}
