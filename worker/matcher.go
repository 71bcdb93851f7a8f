package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/propflow/propflow/dialog"
	"github.com/propflow/propflow/plugin/chat_apps"
	"github.com/propflow/propflow/plugin/chat_apps/channels"
	"github.com/propflow/propflow/plugin/chat_apps/metrics"
	"github.com/propflow/propflow/store"
)

const (
	matcherInterval = 5 * time.Minute

	// budgetFlex stretches the lead's stated ceiling: a property priced up
	// to 10% above budget_max still matches.
	budgetFlex = 1.10
)

// ReportGenerator produces the investment one-pager attached to matches on
// properties with a published ROI. Nil disables attachments.
type ReportGenerator interface {
	ROIReport(ctx context.Context, p *store.Property, lang string) (string, error)
}

// Matcher pushes newly listed properties to qualified and hot leads whose
// criteria they fit. The notification ledger guarantees each (lead, property)
// pair is announced at most once, so re-scanning the full inventory every
// tick is idempotent.
type Matcher struct {
	store    *store.Store
	registry *channels.Registry
	reports  ReportGenerator
	now      func() time.Time
}

func NewMatcher(s *store.Store, registry *channels.Registry, reports ReportGenerator) *Matcher {
	return &Matcher{store: s, registry: registry, reports: reports, now: time.Now}
}

func (m *Matcher) Name() string            { return "matcher" }
func (m *Matcher) Interval() time.Duration { return matcherInterval }

func (m *Matcher) Tick(ctx context.Context) error {
	tenants, err := m.store.ListTenants(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list tenants")
	}
	for _, tenant := range tenants {
		if err := m.tickTenant(ctx, tenant); err != nil {
			metrics.WorkerErrors.WithLabelValues(m.Name()).Inc()
			slog.Error("matcher: tenant sweep failed", "tenant_id", tenant.ID, "error", err)
		}
	}
	return nil
}

func (m *Matcher) tickTenant(ctx context.Context, tenant *store.Tenant) error {
	properties, err := m.store.ListProperties(ctx, &store.FindProperty{
		TenantID:      &tenant.ID,
		OnlyAvailable: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to list properties")
	}
	if len(properties) == 0 {
		return nil
	}

	leads, err := m.store.ListLeads(ctx, &store.FindLead{
		TenantID: &tenant.ID,
		Statuses: []store.LeadStatus{store.StatusQualified, store.StatusHot},
	})
	if err != nil {
		return errors.Wrap(err, "failed to list qualified leads")
	}

	for _, lead := range leads {
		for _, p := range properties {
			if !Matches(lead, p) {
				continue
			}
			// Claim the pair first; a concurrent tick loses the race and
			// skips.
			inserted, err := m.store.RecordPropertyNotification(ctx, tenant.ID, lead.ID, p.ID)
			if err != nil {
				metrics.WorkerErrors.WithLabelValues(m.Name()).Inc()
				slog.Error("matcher: failed to claim notification",
					"lead_id", lead.ID, "property_id", p.ID, "error", err)
				continue
			}
			if !inserted {
				continue
			}
			if err := m.notify(ctx, tenant, lead, p); err != nil {
				metrics.WorkerErrors.WithLabelValues(m.Name()).Inc()
				slog.Error("matcher: notification failed",
					"lead_id", lead.ID, "property_id", p.ID, "error", err)
			}
		}
	}
	return nil
}

// Matches reports whether a property fits a lead's captured criteria. An
// unset criterion never filters; budget_max of zero means the open top band.
func Matches(lead *store.Lead, p *store.Property) bool {
	if lead.PropertyCategory != "" && p.PropertyCategory != lead.PropertyCategory {
		return false
	}
	if lead.PropertyType != "" && p.PropertyType != lead.PropertyType {
		return false
	}
	if p.Price < lead.BudgetMin {
		return false
	}
	if lead.BudgetMax > 0 && float64(p.Price) > float64(lead.BudgetMax)*budgetFlex {
		return false
	}
	if lead.BedroomsMin > 0 && p.Bedrooms < lead.BedroomsMin {
		return false
	}
	if lead.BedroomsMax > 0 && p.Bedrooms > lead.BedroomsMax {
		return false
	}
	if len(lead.PreferredLocations) > 0 {
		location := strings.ToLower(p.Location)
		found := false
		for _, want := range lead.PreferredLocations {
			if want != "" && strings.Contains(location, strings.ToLower(want)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *Matcher) notify(ctx context.Context, tenant *store.Tenant, lead *store.Lead, p *store.Property) error {
	lang := leadLanguage(lead, tenant)
	now := m.now()

	resp := &chat_apps.BotResponse{
		Text: dialog.T(lang, "match_intro") + "\n\n" + dialog.PropertyCard(p, lang, now),
	}
	if m.reports != nil && p.ExpectedROI > 0 {
		ref, err := m.reports.ROIReport(ctx, p, lang)
		if err != nil {
			slog.Warn("matcher: roi report unavailable", "property_id", p.ID, "error", err)
		} else {
			resp.DocumentRef = ref
		}
	}

	if err := m.registry.Send(ctx, lead.Channel, lead.ChannelIdentity, resp); err != nil {
		return errors.Wrapf(err, "failed to deliver match on %s", lead.Channel)
	}

	// The card carries the scarcity annotation, so the urgency counter moves
	// with the fomo counter, capped at 10.
	fomo := lead.FomoMessagesSent + 1
	urgency := lead.UrgencyScore + 1
	if urgency > 10 {
		urgency = 10
	}
	lead.FomoMessagesSent = fomo
	lead.UrgencyScore = urgency
	score := dialog.Score(lead, now)
	temp := dialog.TemperatureFor(score)
	_, err := m.store.UpdateLead(ctx, &store.UpdateLead{
		ID:               lead.ID,
		TenantID:         lead.TenantID,
		FomoMessagesSent: &fomo,
		UrgencyScore:     &urgency,
		LeadScore:        &score,
		Temperature:      &temp,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to record match for lead %d", lead.ID)
	}
	slog.Info("matcher: match sent",
		"tenant_id", tenant.ID, "lead_id", lead.ID, "property_id", p.ID, "lang", lang)
	return nil
}
