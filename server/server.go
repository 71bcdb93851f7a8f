// Package server exposes the webhook ingress, health and metrics endpoints.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/propflow/propflow/dialog"
	"github.com/propflow/propflow/internal/profile"
	"github.com/propflow/propflow/plugin/chat_apps/channels"
	"github.com/propflow/propflow/plugin/chat_apps/channels/telegram"
	"github.com/propflow/propflow/plugin/chat_apps/channels/whatsapp"
	"github.com/propflow/propflow/plugin/chat_apps/metrics"
	"github.com/propflow/propflow/store"
)

// maxWebhookBody caps inbound payload size.
const maxWebhookBody = 1 << 20

// Server is the HTTP ingress. Every webhook turn runs under the configured
// turn budget; shutdown drains in-flight turns before closing.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echo     *echo.Echo
	machine  *dialog.Machine
	registry *channels.Registry
	inflight sync.WaitGroup
}

func New(p *profile.Profile, s *store.Store, machine *dialog.Machine, registry *channels.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	srv := &Server{
		Profile:  p,
		Store:    s,
		echo:     e,
		machine:  machine,
		registry: registry,
	}

	e.GET("/healthz", srv.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/webhooks/telegram/:tenant", srv.handleTelegramWebhook)
	e.POST("/webhooks/gateway", srv.handleGatewayWebhook)

	return srv
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server: listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight turns, then stops the listener.
func (s *Server) Shutdown(ctx context.Context) {
	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		slog.Warn("server: shutdown deadline reached with turns in flight")
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		slog.Error("server: failed to shutdown gracefully", "error", err)
	}
	slog.Info("server: stopped")
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTelegramWebhook(c echo.Context) error {
	tenant := c.Param("tenant")
	if _, err := strconv.ParseInt(tenant, 10, 64); err != nil {
		return c.NoContent(http.StatusNotFound)
	}
	headers := map[string]string{telegram.HeaderTenantID: tenant}
	return s.handleWebhook(c, store.ChannelTelegram, headers)
}

func (s *Server) handleGatewayWebhook(c echo.Context) error {
	headers := map[string]string{}
	for _, name := range []string{whatsapp.HeaderTenantID, whatsapp.HeaderVerticalMode} {
		if v := c.Request().Header.Get(name); v != "" {
			headers[name] = v
		}
	}
	return s.handleWebhook(c, store.ChannelWhatsApp, headers)
}

// handleWebhook is the shared ingress path: parse, process under the turn
// budget, deliver the response. Send failures do not fail the webhook; the
// turn is already persisted.
func (s *Server) handleWebhook(c echo.Context, channel store.Channel, headers map[string]string) error {
	s.inflight.Add(1)
	defer s.inflight.Done()

	adapter := s.registry.Get(channel)
	if adapter == nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.Profile.TurnTimeout)
	defer cancel()

	msg, err := adapter.ParseMessage(ctx, headers, body)
	if err != nil {
		metrics.WebhookErrors.WithLabelValues(string(channel)).Inc()
		slog.Warn("server: rejected webhook payload", "channel", channel, "error", err)
		return c.NoContent(http.StatusBadRequest)
	}

	start := time.Now()
	resp, err := s.machine.Process(ctx, msg)
	metrics.TurnDuration.WithLabelValues(string(channel)).Observe(time.Since(start).Seconds())
	if err != nil {
		if derr, ok := err.(*dialog.Error); ok && derr.Retryable() {
			// The channel redelivers on 5xx; the turn was not persisted.
			slog.Error("server: turn failed, retryable", "channel", channel, "error", derr)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		slog.Error("server: turn failed", "channel", channel, "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}

	if resp != nil {
		if err := adapter.SendResponse(ctx, msg.ChannelIdentity, resp); err != nil {
			slog.Error("server: response delivery failed",
				"channel", channel, "channel_identity", msg.ChannelIdentity, "error", err)
		}
	}
	return c.NoContent(http.StatusOK)
}
