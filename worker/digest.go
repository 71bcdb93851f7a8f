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

const digestInterval = 24 * time.Hour

// Digest sends each tenant admin a once-a-day summary of pipeline movement:
// how many leads arrived and how many are currently hot. Tenants without a
// registered admin chat are skipped.
type Digest struct {
	store    *store.Store
	registry *channels.Registry
	now      func() time.Time
}

func NewDigest(s *store.Store, registry *channels.Registry) *Digest {
	return &Digest{store: s, registry: registry, now: time.Now}
}

func (d *Digest) Name() string            { return "digest" }
func (d *Digest) Interval() time.Duration { return digestInterval }

func (d *Digest) Tick(ctx context.Context) error {
	tenants, err := d.store.ListTenants(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list tenants")
	}
	for _, tenant := range tenants {
		if !tenant.HasAdmin() {
			continue
		}
		if err := d.tickTenant(ctx, tenant); err != nil {
			metrics.WorkerErrors.WithLabelValues(d.Name()).Inc()
			slog.Error("digest: tenant summary failed", "tenant_id", tenant.ID, "error", err)
		}
	}
	return nil
}

func (d *Digest) tickTenant(ctx context.Context, tenant *store.Tenant) error {
	since := d.now().Add(-24 * time.Hour)
	fresh, err := d.store.ListLeads(ctx, &store.FindLead{
		TenantID:     &tenant.ID,
		CreatedAfter: &since,
	})
	if err != nil {
		return errors.Wrap(err, "failed to count new leads")
	}

	hot, err := d.store.ListLeads(ctx, &store.FindLead{
		TenantID: &tenant.ID,
		Statuses: []store.LeadStatus{store.StatusHot},
	})
	if err != nil {
		return errors.Wrap(err, "failed to count hot leads")
	}

	if len(fresh) == 0 && len(hot) == 0 {
		// A quiet day earns no message.
		return nil
	}

	lang := tenant.DefaultLanguage
	if lang == "" {
		lang = "en"
	}
	resp := &chat_apps.BotResponse{
		Text: dialog.T(lang, "daily_digest", len(fresh), len(hot)),
	}
	if err := d.registry.Send(ctx, tenant.AdminChannel, tenant.AdminChannelIdentity, resp); err != nil {
		return errors.Wrapf(err, "failed to deliver digest on %s", tenant.AdminChannel)
	}
	slog.Info("digest: summary sent", "tenant_id", tenant.ID, "new", len(fresh), "hot", len(hot))
	return nil
}
