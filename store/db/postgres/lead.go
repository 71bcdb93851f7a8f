package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/propflow/propflow/store"
)

const leadColumns = `
	id, tenant_id, channel, channel_identity,
	name, phone, language,
	goal, transaction_type, property_category, property_type,
	budget_min, budget_max, bedrooms_min, bedrooms_max,
	preferred_locations, payment_method, purpose,
	state, pending_slot, filled_slots, conversation_data,
	last_interaction, ghost_reminder_sent, fomo_messages_sent, urgency_score,
	messages_count, voice_messages_count, qr_scan_count, catalog_views,
	lead_score, temperature, status, created_at, updated_at`

func (d *DB) CreateLead(ctx context.Context, create *store.Lead) (*store.Lead, error) {
	conversationJSON, err := marshalConversation(create.ConversationData)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO leads (
			tenant_id, channel, channel_identity, name, phone, language,
			goal, transaction_type, property_category, property_type,
			budget_min, budget_max, bedrooms_min, bedrooms_max,
			preferred_locations, payment_method, purpose,
			state, pending_slot, filled_slots, conversation_data,
			last_interaction, status, temperature
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				  $15, $16, $17, $18, $19, $20, $21, NOW(), $22, $23)
		RETURNING id, last_interaction, created_at, updated_at
	`
	if create.State == "" {
		create.State = store.StateStart
	}
	if create.Status == "" {
		create.Status = store.StatusNew
	}
	if create.Temperature == "" {
		create.Temperature = store.TemperatureCold
	}

	if err := d.db.QueryRowContext(ctx, query,
		create.TenantID,
		create.Channel,
		create.ChannelIdentity,
		create.Name,
		create.Phone,
		create.Language,
		create.Goal,
		create.TransactionType,
		create.PropertyCategory,
		create.PropertyType,
		create.BudgetMin,
		create.BudgetMax,
		create.BedroomsMin,
		create.BedroomsMax,
		pq.Array(stringSlice(create.PreferredLocations)),
		create.PaymentMethod,
		create.Purpose,
		create.State,
		create.PendingSlot,
		pq.Array(stringSlice(create.FilledSlots)),
		conversationJSON,
		create.Status,
		create.Temperature,
	).Scan(&create.ID, &create.LastInteraction, &create.CreatedAt, &create.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to create lead")
	}
	return create, nil
}

func (d *DB) GetLead(ctx context.Context, find *store.FindLead) (*store.Lead, error) {
	where, args := buildLeadFilter(find)
	query := `SELECT ` + leadColumns + ` FROM leads WHERE ` + strings.Join(where, " AND ") + ` LIMIT 1`

	lead, err := scanLead(d.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get lead")
	}
	return lead, nil
}

func (d *DB) ListLeads(ctx context.Context, find *store.FindLead) ([]*store.Lead, error) {
	where, args := buildLeadFilter(find)
	query := `SELECT ` + leadColumns + ` FROM leads WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list leads")
	}
	defer rows.Close()

	var list []*store.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan lead")
		}
		list = append(list, lead)
	}
	return list, rows.Err()
}

func (d *DB) UpdateLead(ctx context.Context, update *store.UpdateLead) (*store.Lead, error) {
	set, args := []string{"updated_at = NOW()"}, []any{}
	add := func(column string, value any) {
		set = append(set, column+" = "+placeholder(len(args)+1))
		args = append(args, value)
	}

	if v := update.Name; v != nil {
		add("name", *v)
	}
	if v := update.Phone; v != nil {
		add("phone", *v)
	}
	if v := update.Language; v != nil {
		add("language", *v)
	}
	if v := update.Goal; v != nil {
		add("goal", string(*v))
	}
	if v := update.TransactionType; v != nil {
		add("transaction_type", string(*v))
	}
	if v := update.PropertyCategory; v != nil {
		add("property_category", string(*v))
	}
	if v := update.PropertyType; v != nil {
		add("property_type", *v)
	}
	if v := update.BudgetMin; v != nil {
		add("budget_min", *v)
	}
	if v := update.BudgetMax; v != nil {
		add("budget_max", *v)
	}
	if v := update.BedroomsMin; v != nil {
		add("bedrooms_min", *v)
	}
	if v := update.BedroomsMax; v != nil {
		add("bedrooms_max", *v)
	}
	if update.PreferredLocations != nil {
		add("preferred_locations", pq.Array(update.PreferredLocations))
	}
	if v := update.PaymentMethod; v != nil {
		add("payment_method", *v)
	}
	if v := update.Purpose; v != nil {
		add("purpose", *v)
	}
	if v := update.State; v != nil {
		add("state", string(*v))
	}
	if v := update.PendingSlot; v != nil {
		add("pending_slot", *v)
	}
	if update.FilledSlots != nil {
		add("filled_slots", pq.Array(update.FilledSlots))
	}
	if update.ConversationData != nil {
		conversationJSON, err := marshalConversation(update.ConversationData)
		if err != nil {
			return nil, err
		}
		add("conversation_data", conversationJSON)
	}
	if v := update.LastInteraction; v != nil {
		add("last_interaction", *v)
	}
	if v := update.GhostReminderSent; v != nil {
		add("ghost_reminder_sent", *v)
	}
	if v := update.FomoMessagesSent; v != nil {
		add("fomo_messages_sent", *v)
	}
	if v := update.UrgencyScore; v != nil {
		add("urgency_score", *v)
	}
	if v := update.MessagesCount; v != nil {
		add("messages_count", *v)
	}
	if v := update.VoiceMessagesCount; v != nil {
		add("voice_messages_count", *v)
	}
	if v := update.QRScanCount; v != nil {
		add("qr_scan_count", *v)
	}
	if v := update.CatalogViews; v != nil {
		add("catalog_views", *v)
	}
	if v := update.LeadScore; v != nil {
		add("lead_score", *v)
	}
	if v := update.Temperature; v != nil {
		add("temperature", string(*v))
	}
	if v := update.Status; v != nil {
		add("status", string(*v))
	}

	args = append(args, update.ID, update.TenantID)
	query := `
		UPDATE leads SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)-1) + ` AND tenant_id = ` + placeholder(len(args)) + `
		RETURNING ` + leadColumns

	lead, err := scanLead(d.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, errors.Wrap(err, "failed to update lead")
	}
	return lead, nil
}

func buildLeadFilter(find *store.FindLead) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	add := func(condition string, value any) {
		where = append(where, condition+" "+placeholder(len(args)+1))
		args = append(args, value)
	}

	if v := find.ID; v != nil {
		add("id =", *v)
	}
	if v := find.TenantID; v != nil {
		add("tenant_id =", *v)
	}
	if v := find.Channel; v != nil {
		add("channel =", string(*v))
	}
	if v := find.ChannelIdentity; v != nil {
		add("channel_identity =", *v)
	}
	if len(find.Statuses) > 0 {
		statuses := make([]string, len(find.Statuses))
		for i, s := range find.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, "status = ANY("+placeholder(len(args)+1)+")")
		args = append(args, pq.Array(statuses))
	}
	if len(find.ExcludeStates) > 0 {
		states := make([]string, len(find.ExcludeStates))
		for i, s := range find.ExcludeStates {
			states[i] = string(s)
		}
		where = append(where, "state != ALL("+placeholder(len(args)+1)+")")
		args = append(args, pq.Array(states))
	}
	if v := find.HasPhone; v != nil {
		if *v {
			where = append(where, "phone != ''")
		} else {
			where = append(where, "phone = ''")
		}
	}
	if v := find.InactiveSince; v != nil {
		add("last_interaction <=", *v)
	}
	if v := find.GhostPending; v != nil {
		add("ghost_reminder_sent =", !*v)
	}
	if v := find.CreatedAfter; v != nil {
		add("created_at >=", *v)
	}
	return where, args
}

func scanLead(row rowScanner) (*store.Lead, error) {
	lead := &store.Lead{}
	var (
		locations        pq.StringArray
		filledSlots      pq.StringArray
		conversationJSON []byte
	)
	if err := row.Scan(
		&lead.ID,
		&lead.TenantID,
		&lead.Channel,
		&lead.ChannelIdentity,
		&lead.Name,
		&lead.Phone,
		&lead.Language,
		&lead.Goal,
		&lead.TransactionType,
		&lead.PropertyCategory,
		&lead.PropertyType,
		&lead.BudgetMin,
		&lead.BudgetMax,
		&lead.BedroomsMin,
		&lead.BedroomsMax,
		&locations,
		&lead.PaymentMethod,
		&lead.Purpose,
		&lead.State,
		&lead.PendingSlot,
		&filledSlots,
		&conversationJSON,
		&lead.LastInteraction,
		&lead.GhostReminderSent,
		&lead.FomoMessagesSent,
		&lead.UrgencyScore,
		&lead.MessagesCount,
		&lead.VoiceMessagesCount,
		&lead.QRScanCount,
		&lead.CatalogViews,
		&lead.LeadScore,
		&lead.Temperature,
		&lead.Status,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lead.PreferredLocations = locations
	lead.FilledSlots = filledSlots
	if len(conversationJSON) > 0 {
		if err := json.Unmarshal(conversationJSON, &lead.ConversationData); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal conversation data")
		}
	}
	return lead, nil
}

func marshalConversation(data map[string]string) ([]byte, error) {
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal conversation data")
	}
	return payload, nil
}

func stringSlice(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
