// Package retrieval selects tenant knowledge snippets for oracle prompting
// and for the trust/education messages in the dialogue flow. Matching is
// deterministic keyword scoring, not embeddings: tenant knowledge bases are
// small (tens of entries) and the lookup has to stay inside the turn budget.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/propflow/propflow/store"
)

// Knowledge categories with dedicated lookups.
const (
	CategoryTrust     = "trust"
	CategoryEducation = "education"
)

// DefaultTopK is the number of snippets injected into an oracle prompt.
const DefaultTopK = 3

type lister interface {
	ListKnowledge(ctx context.Context, find *store.FindKnowledge) ([]*store.KnowledgeEntry, error)
}

// Retriever answers knowledge lookups for one store.
type Retriever struct {
	store lister
}

func New(s lister) *Retriever {
	return &Retriever{store: s}
}

type scored struct {
	entry *store.KnowledgeEntry
	score int
}

// TopK returns the k best-matching active entries for the query, in the
// lead's language. Exact keyword hits score 2, title token hits score 1,
// entries that score 0 are never returned, ties break on priority.
func (r *Retriever) TopK(ctx context.Context, tenantID int64, lang, query string, k int) ([]*store.KnowledgeEntry, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	entries, err := r.store.ListKnowledge(ctx, &store.FindKnowledge{
		TenantID:   &tenantID,
		Language:   &lang,
		OnlyActive: true,
	})
	if err != nil {
		return nil, err
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	candidates := make([]scored, 0, len(entries))
	for _, entry := range entries {
		if s := scoreEntry(entry, queryTokens); s > 0 {
			candidates = append(candidates, scored{entry: entry, score: s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entry.Priority > candidates[j].entry.Priority
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	result := make([]*store.KnowledgeEntry, len(candidates))
	for i, c := range candidates {
		result[i] = c.entry
	}
	return result, nil
}

// Snippets renders the top-k matches as prompt-ready strings.
func (r *Retriever) Snippets(ctx context.Context, tenantID int64, lang, query string, k int) ([]string, error) {
	entries, err := r.TopK(ctx, tenantID, lang, query, k)
	if err != nil {
		return nil, err
	}
	snippets := make([]string, len(entries))
	for i, entry := range entries {
		snippets[i] = entry.Title + ": " + entry.Content
	}
	return snippets, nil
}

// TrustSnippet returns the highest-priority active trust entry, or nil when
// the tenant has none in that language.
func (r *Retriever) TrustSnippet(ctx context.Context, tenantID int64, lang string) (*store.KnowledgeEntry, error) {
	return r.topOfCategory(ctx, tenantID, lang, CategoryTrust, nil)
}

// EducationSnippet returns the best active education entry for the lead's
// goal. Entries keyword-tagged with the goal win over untagged ones.
func (r *Retriever) EducationSnippet(ctx context.Context, tenantID int64, lang string, goal store.Goal) (*store.KnowledgeEntry, error) {
	goalToken := strings.ToLower(string(goal))
	return r.topOfCategory(ctx, tenantID, lang, CategoryEducation, func(entry *store.KnowledgeEntry) int {
		for _, kw := range entry.Keywords {
			if strings.ToLower(kw) == goalToken {
				return 1
			}
		}
		return 0
	})
}

func (r *Retriever) topOfCategory(ctx context.Context, tenantID int64, lang, category string, boost func(*store.KnowledgeEntry) int) (*store.KnowledgeEntry, error) {
	entries, err := r.store.ListKnowledge(ctx, &store.FindKnowledge{
		TenantID:   &tenantID,
		Language:   &lang,
		Category:   &category,
		OnlyActive: true,
	})
	if err != nil {
		return nil, err
	}
	var best *store.KnowledgeEntry
	bestRank := -1
	for _, entry := range entries {
		rank := entry.Priority
		if boost != nil {
			rank += boost(entry) * 1000
		}
		if rank > bestRank {
			best, bestRank = entry, rank
		}
	}
	return best, nil
}

func scoreEntry(entry *store.KnowledgeEntry, queryTokens []string) int {
	keywords := make(map[string]bool, len(entry.Keywords))
	for _, kw := range entry.Keywords {
		keywords[strings.ToLower(kw)] = true
	}
	titleTokens := make(map[string]bool)
	for _, tok := range tokenize(entry.Title) {
		titleTokens[tok] = true
	}

	score := 0
	for _, tok := range queryTokens {
		if keywords[tok] {
			score += 2
		} else if titleTokens[tok] {
			score++
		}
	}
	return score
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
