package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/propflow/propflow/dialog"
	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/plugin/chat_apps/channels"
	"github.com/propflow/propflow/plugin/chat_apps/metrics"
	"github.com/propflow/propflow/store"
)

const (
	ghostInterval = 30 * time.Minute

	// ghostInactivity is how long a lead with a captured phone may stay
	// silent before the one-off follow-up fires. Exactly at the boundary
	// counts as inactive.
	ghostInactivity = 2 * time.Hour
)

// Ghost sends the single "a colleague just found something" nudge to leads
// that shared a phone and then went quiet mid-funnel. Each lead gets the
// nudge at most once; leads already at scheduling or completed are left
// alone.
type Ghost struct {
	store    *store.Store
	registry *channels.Registry
	now      func() time.Time
}

func NewGhost(s *store.Store, registry *channels.Registry) *Ghost {
	return &Ghost{store: s, registry: registry, now: time.Now}
}

func (g *Ghost) Name() string            { return "ghost" }
func (g *Ghost) Interval() time.Duration { return ghostInterval }

func (g *Ghost) Tick(ctx context.Context) error {
	tenants, err := g.store.ListTenants(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list tenants")
	}
	for _, tenant := range tenants {
		if err := g.tickTenant(ctx, tenant); err != nil {
			metrics.WorkerErrors.WithLabelValues(g.Name()).Inc()
			slog.Error("ghost: tenant sweep failed", "tenant_id", tenant.ID, "error", err)
		}
	}
	return nil
}

func (g *Ghost) tickTenant(ctx context.Context, tenant *store.Tenant) error {
	cutoff := g.now().Add(-ghostInactivity)
	hasPhone, pending := true, true
	leads, err := g.store.ListLeads(ctx, &store.FindLead{
		TenantID:      &tenant.ID,
		HasPhone:      &hasPhone,
		InactiveSince: &cutoff,
		GhostPending:  &pending,
		ExcludeStates: []store.LeadState{store.StateHandoffSchedule, store.StateCompleted},
	})
	if err != nil {
		return errors.Wrap(err, "failed to list ghosted leads")
	}

	for _, lead := range leads {
		if err := g.nudge(ctx, tenant, lead); err != nil {
			// One stuck lead must not block the rest of the sweep.
			metrics.WorkerErrors.WithLabelValues(g.Name()).Inc()
			slog.Error("ghost: nudge failed", "tenant_id", tenant.ID, "lead_id", lead.ID, "error", err)
		}
	}
	return nil
}

func (g *Ghost) nudge(ctx context.Context, tenant *store.Tenant, lead *store.Lead) error {
	lang := leadLanguage(lead, tenant)
	resp := &chat_apps.BotResponse{Text: dialog.T(lang, "ghost_followup")}
	if err := g.registry.Send(ctx, lead.Channel, lead.ChannelIdentity, resp); err != nil {
		return errors.Wrapf(err, "failed to deliver follow-up on %s", lead.Channel)
	}

	// Mark sent only after a successful delivery so a transport outage
	// retries on the next sweep.
	sent := true
	fomo := lead.FomoMessagesSent + 1
	now := g.now()
	lead.FomoMessagesSent = fomo
	lead.LastInteraction = now
	score := dialog.Score(lead, now)
	temp := dialog.TemperatureFor(score)
	_, err := g.store.UpdateLead(ctx, &store.UpdateLead{
		ID:                lead.ID,
		TenantID:          lead.TenantID,
		GhostReminderSent: &sent,
		FomoMessagesSent:  &fomo,
		LastInteraction:   &now,
		LeadScore:         &score,
		Temperature:       &temp,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to mark follow-up sent for lead %d", lead.ID)
	}
	slog.Info("ghost: follow-up sent", "tenant_id", tenant.ID, "lead_id", lead.ID, "lang", lang)
	return nil
}

// leadLanguage picks the delivery language: the lead's own, then the tenant
// default, then English.
func leadLanguage(lead *store.Lead, tenant *store.Tenant) string {
	if lead.Language != "" {
		return lead.Language
	}
	if tenant.DefaultLanguage != "" {
		return tenant.DefaultLanguage
	}
	return "en"
}
