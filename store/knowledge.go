package store

import (
	"context"
	"time"
)

// KnowledgeEntry is one tenant knowledge snippet used for prompting and
// trust/education messaging.
type KnowledgeEntry struct {
	ID        int64
	TenantID  int64
	Category  string
	Title     string
	Content   string
	Language  string
	Keywords  []string
	Priority  int // 0-100, retrieval tiebreaker
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FindKnowledge is the filter for knowledge queries.
type FindKnowledge struct {
	TenantID   *int64
	Language   *string
	Category   *string
	OnlyActive bool
}

func (s *Store) CreateKnowledge(ctx context.Context, create *KnowledgeEntry) (*KnowledgeEntry, error) {
	return s.driver.CreateKnowledge(ctx, create)
}

func (s *Store) ListKnowledge(ctx context.Context, find *FindKnowledge) ([]*KnowledgeEntry, error) {
	return s.driver.ListKnowledge(ctx, find)
}
