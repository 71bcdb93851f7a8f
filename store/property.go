package store

import (
	"context"
	"time"
)

// Property is one inventory item of a tenant.
type Property struct {
	ID                 int64
	TenantID           int64
	Title              string
	Price              int64 // AED
	Bedrooms           int
	Location           string
	PropertyType       string
	PropertyCategory   PropertyCategory
	IsFeatured         bool
	IsAvailable        bool
	IsOffPlan          bool
	IsUrgent           bool
	GoldenVisaEligible bool
	ExpectedROI        float64 // percent per annum
	MediaRefs          []string
	CreatedAt          time.Time
}

// FindProperty is the filter for inventory queries.
type FindProperty struct {
	ID               *int64
	TenantID         *int64
	PropertyCategory *PropertyCategory
	PropertyType     *string
	PriceMin         *int64
	PriceMax         *int64
	BedroomsMin      *int
	BedroomsMax      *int
	OnlyAvailable    bool
	OnlyFeatured     bool
	Limit            *int
}

func (s *Store) CreateProperty(ctx context.Context, create *Property) (*Property, error) {
	return s.driver.CreateProperty(ctx, create)
}

func (s *Store) GetProperty(ctx context.Context, find *FindProperty) (*Property, error) {
	return s.driver.GetProperty(ctx, find)
}

func (s *Store) ListProperties(ctx context.Context, find *FindProperty) ([]*Property, error) {
	return s.driver.ListProperties(ctx, find)
}

// MarkPropertyUnavailable hides a property from matching without deleting it.
func (s *Store) MarkPropertyUnavailable(ctx context.Context, tenantID, id int64) error {
	return s.driver.MarkPropertyUnavailable(ctx, tenantID, id)
}
