package postgres

import (
	"context"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/propflow/propflow/store"
)

func (d *DB) CreateKnowledge(ctx context.Context, create *store.KnowledgeEntry) (*store.KnowledgeEntry, error) {
	query := `
		INSERT INTO knowledge (
			tenant_id, category, title, content, language, keywords, priority, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	if err := d.db.QueryRowContext(ctx, query,
		create.TenantID,
		create.Category,
		create.Title,
		create.Content,
		create.Language,
		pq.Array(stringSlice(create.Keywords)),
		create.Priority,
		create.IsActive,
	).Scan(&create.ID, &create.CreatedAt, &create.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to create knowledge entry")
	}
	return create, nil
}

func (d *DB) ListKnowledge(ctx context.Context, find *store.FindKnowledge) ([]*store.KnowledgeEntry, error) {
	where, args := []string{"1 = 1"}, []any{}
	add := func(condition string, value any) {
		where = append(where, condition+" "+placeholder(len(args)+1))
		args = append(args, value)
	}

	if v := find.TenantID; v != nil {
		add("tenant_id =", *v)
	}
	if v := find.Language; v != nil {
		add("language =", *v)
	}
	if v := find.Category; v != nil {
		add("category =", *v)
	}
	if find.OnlyActive {
		where = append(where, "is_active = TRUE")
	}

	query := `
		SELECT id, tenant_id, category, title, content, language, keywords, priority, is_active,
			   created_at, updated_at
		FROM knowledge
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY priority DESC, id
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list knowledge entries")
	}
	defer rows.Close()

	var list []*store.KnowledgeEntry
	for rows.Next() {
		entry := &store.KnowledgeEntry{}
		var keywords pq.StringArray
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.Category,
			&entry.Title,
			&entry.Content,
			&entry.Language,
			&keywords,
			&entry.Priority,
			&entry.IsActive,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan knowledge entry")
		}
		entry.Keywords = keywords
		list = append(list, entry)
	}
	return list, rows.Err()
}
