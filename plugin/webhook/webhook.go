// Package webhook posts lead lifecycle events to a tenant's CRM endpoint.
package webhook

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/propflow/propflow/store"
)

var (
	// timeout is the timeout for webhook request. Default to 30 seconds.
	timeout = 30 * time.Second
)

// LeadEventPayload is the CRM egress body emitted on lead status
// transitions.
type LeadEventPayload struct {
	URL       string `json:"url"`
	EventType string `json:"eventType"` // lead.qualified, lead.hot, lead.viewing_scheduled

	LeadID          int64  `json:"leadId"`
	TenantID        int64  `json:"tenantId"`
	Channel         string `json:"channel"`
	ChannelIdentity string `json:"channelIdentity"`

	Name            string `json:"name,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Language        string `json:"language,omitempty"`
	Goal            string `json:"goal,omitempty"`
	TransactionType string `json:"transactionType,omitempty"`
	Category        string `json:"category,omitempty"`
	PropertyType    string `json:"propertyType,omitempty"`
	BudgetMin       int64  `json:"budgetMin,omitempty"`
	BudgetMax       int64  `json:"budgetMax,omitempty"`
	LeadScore       int    `json:"leadScore"`
	Temperature     string `json:"temperature,omitempty"`
	Status          string `json:"status"`

	OccurredAt time.Time `json:"occurredAt"`
}

// NewLeadEvent builds the payload for one lead transition.
func NewLeadEvent(url, eventType string, lead *store.Lead) *LeadEventPayload {
	return &LeadEventPayload{
		URL:             url,
		EventType:       eventType,
		LeadID:          lead.ID,
		TenantID:        lead.TenantID,
		Channel:         string(lead.Channel),
		ChannelIdentity: lead.ChannelIdentity,
		Name:            lead.Name,
		Phone:           lead.Phone,
		Language:        lead.Language,
		Goal:            string(lead.Goal),
		TransactionType: string(lead.TransactionType),
		Category:        string(lead.PropertyCategory),
		PropertyType:    lead.PropertyType,
		BudgetMin:       lead.BudgetMin,
		BudgetMax:       lead.BudgetMax,
		LeadScore:       lead.LeadScore,
		Temperature:     string(lead.Temperature),
		Status:          string(lead.Status),
		OccurredAt:      time.Now(),
	}
}

// Post posts the event to the CRM endpoint.
func Post(requestPayload *LeadEventPayload) error {
	body, err := json.Marshal(requestPayload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal webhook request to %s", requestPayload.URL)
	}

	req, err := http.NewRequest("POST", requestPayload.URL, bytes.NewBuffer(body))
	if err != nil {
		return errors.Wrapf(err, "failed to construct webhook request to %s", requestPayload.URL)
	}

	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{
		Timeout: timeout,
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to post webhook to %s", requestPayload.URL)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read webhook response from %s", requestPayload.URL)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("failed to post webhook %s, status code: %d, response body: %s", requestPayload.URL, resp.StatusCode, b)
	}
	return nil
}

// PostAsync posts the event asynchronously. It spawns a new goroutine to
// handle the request and does not wait for the response.
func PostAsync(requestPayload *LeadEventPayload) {
	go func() {
		if err := Post(requestPayload); err != nil {
			// Since we're in a goroutine, we can only log the error
			slog.Warn("Failed to dispatch webhook asynchronously",
				slog.String("url", requestPayload.URL),
				slog.String("eventType", requestPayload.EventType),
				slog.Any("err", err))
		}
	}()
}
