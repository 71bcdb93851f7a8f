package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/propflow/store"
)

type fakeLister struct {
	entries []*store.KnowledgeEntry
}

func (f *fakeLister) ListKnowledge(_ context.Context, find *store.FindKnowledge) ([]*store.KnowledgeEntry, error) {
	var out []*store.KnowledgeEntry
	for _, e := range f.entries {
		if find.Category != nil && e.Category != *find.Category {
			continue
		}
		if find.Language != nil && e.Language != *find.Language {
			continue
		}
		if find.OnlyActive && !e.IsActive {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func TestTopKScoring(t *testing.T) {
	r := New(&fakeLister{entries: []*store.KnowledgeEntry{
		{ID: 1, Title: "Golden visa rules", Keywords: []string{"visa", "residency"}, Language: "en", Priority: 50, IsActive: true},
		{ID: 2, Title: "Mortgage basics", Keywords: []string{"mortgage", "financing"}, Language: "en", Priority: 80, IsActive: true},
		{ID: 3, Title: "Visa processing times", Keywords: []string{"visa"}, Language: "en", Priority: 90, IsActive: true},
		{ID: 4, Title: "Off-plan payment plans", Keywords: []string{"off-plan"}, Language: "en", Priority: 99, IsActive: true},
	}})

	entries, err := r.TopK(context.Background(), 1, "en", "can I get a visa if I buy?", 3)
	require.NoError(t, err)
	require.Len(t, entries, 2, "entries with zero score are excluded")
	// Both score 2 on the "visa" keyword; priority breaks the tie.
	assert.Equal(t, int64(3), entries[0].ID)
	assert.Equal(t, int64(1), entries[1].ID)
}

func TestTopKTitleTokensScoreLower(t *testing.T) {
	r := New(&fakeLister{entries: []*store.KnowledgeEntry{
		{ID: 1, Title: "Mortgage basics", Keywords: nil, Language: "en", Priority: 99, IsActive: true},
		{ID: 2, Title: "Buying guide", Keywords: []string{"mortgage"}, Language: "en", Priority: 1, IsActive: true},
	}})

	entries, err := r.TopK(context.Background(), 1, "en", "mortgage", 3)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ID, "keyword hit outranks title hit despite priority")
}

func TestTopKEmptyQuery(t *testing.T) {
	r := New(&fakeLister{entries: []*store.KnowledgeEntry{
		{ID: 1, Title: "Anything", Language: "en", IsActive: true},
	}})
	entries, err := r.TopK(context.Background(), 1, "en", "  !!! ", 3)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTrustSnippetPicksHighestPriority(t *testing.T) {
	r := New(&fakeLister{entries: []*store.KnowledgeEntry{
		{ID: 1, Category: CategoryTrust, Title: "RERA licensed", Language: "en", Priority: 10, IsActive: true},
		{ID: 2, Category: CategoryTrust, Title: "10 years in business", Language: "en", Priority: 70, IsActive: true},
		{ID: 3, Category: CategoryTrust, Title: "Inactive claim", Language: "en", Priority: 99, IsActive: false},
	}})

	entry, err := r.TrustSnippet(context.Background(), 1, "en")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(2), entry.ID)
}

func TestTrustSnippetNone(t *testing.T) {
	r := New(&fakeLister{})
	entry, err := r.TrustSnippet(context.Background(), 1, "fa")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestEducationSnippetPrefersGoalTag(t *testing.T) {
	r := New(&fakeLister{entries: []*store.KnowledgeEntry{
		{ID: 1, Category: CategoryEducation, Title: "ROI in Dubai Marina", Keywords: []string{"investment"}, Language: "en", Priority: 5, IsActive: true},
		{ID: 2, Category: CategoryEducation, Title: "School districts guide", Keywords: []string{"living"}, Language: "en", Priority: 90, IsActive: true},
	}})

	entry, err := r.EducationSnippet(context.Background(), 1, "en", store.GoalInvestment)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(1), entry.ID, "goal tag beats priority")
}
