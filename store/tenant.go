package store

import (
	"context"
	"time"
)

// Channel identifies a message transport.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
)

// IsValid checks if the channel is supported.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelTelegram, ChannelWhatsApp:
		return true
	default:
		return false
	}
}

// Vertical is a tenant-configured conversational profile. Deep links of the
// form start_<name>(_<hint>)? and the registered keywords route to it.
type Vertical struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
}

// Tenant is one agency. All other rows hang off a tenant id and every query
// filters on it.
type Tenant struct {
	ID                   int64
	Name                 string
	DefaultLanguage      string
	BrandColor           string
	CRMWebhookURL        string
	AdminChannel         Channel
	AdminChannelIdentity string
	SubscriptionActive   bool
	Verticals            []Vertical
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// VerticalByName returns the configured vertical with the given name.
func (t *Tenant) VerticalByName(name string) (Vertical, bool) {
	for _, v := range t.Verticals {
		if v.Name == name {
			return v, true
		}
	}
	return Vertical{}, false
}

// HasAdmin reports whether a hot-lead alert destination is configured.
func (t *Tenant) HasAdmin() bool {
	return t.AdminChannelIdentity != ""
}

// FindTenant is the filter for tenant lookups.
type FindTenant struct {
	ID *int64
}

// UpdateTenant carries a partial tenant update. Nil fields are left unchanged.
type UpdateTenant struct {
	ID                   int64
	Name                 *string
	DefaultLanguage      *string
	BrandColor           *string
	CRMWebhookURL        *string
	AdminChannel         *Channel
	AdminChannelIdentity *string
	SubscriptionActive   *bool
	Verticals            []Vertical
}

func (s *Store) CreateTenant(ctx context.Context, create *Tenant) (*Tenant, error) {
	return s.driver.CreateTenant(ctx, create)
}

// GetTenant returns the tenant, serving repeated lookups from the in-process
// cache. Webhook turns resolve the tenant on every message.
func (s *Store) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	if cached, ok := s.tenantCache.Get(id); ok {
		if tenant, ok := cached.(*Tenant); ok {
			return tenant, nil
		}
	}
	tenant, err := s.driver.GetTenant(ctx, &FindTenant{ID: &id})
	if err != nil {
		return nil, err
	}
	if tenant != nil {
		s.tenantCache.Set(id, tenant)
	}
	return tenant, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]*Tenant, error) {
	return s.driver.ListTenants(ctx)
}

func (s *Store) UpdateTenant(ctx context.Context, update *UpdateTenant) (*Tenant, error) {
	tenant, err := s.driver.UpdateTenant(ctx, update)
	if err != nil {
		return nil, err
	}
	s.tenantCache.Delete(update.ID)
	return tenant, nil
}
