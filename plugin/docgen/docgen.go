// Package docgen is the client for the document rendering service that
// turns a property into a shareable ROI one-pager.
package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/propflow/propflow/store"
)

// Config holds the rendering service connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client renders documents over HTTP.
type Client struct {
	config *Config
	client *http.Client
}

func New(config *Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		client: &http.Client{Timeout: timeout},
	}
}

type roiRequest struct {
	PropertyID  int64   `json:"propertyId"`
	Title       string  `json:"title"`
	Location    string  `json:"location"`
	Price       int64   `json:"price"`
	ExpectedROI float64 `json:"expectedRoi"`
	GoldenVisa  bool    `json:"goldenVisa"`
	Language    string  `json:"language"`
}

type roiResponse struct {
	DocumentURL string `json:"documentUrl"`
}

// ROIReport renders the investment one-pager for a property and returns a
// reference the transport adapters can deliver.
func (c *Client) ROIReport(ctx context.Context, p *store.Property, lang string) (string, error) {
	body, err := json.Marshal(&roiRequest{
		PropertyID:  p.ID,
		Title:       p.Title,
		Location:    p.Location,
		Price:       p.Price,
		ExpectedROI: p.ExpectedROI,
		GoldenVisa:  p.GoldenVisaEligible,
		Language:    lang,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal roi request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.config.BaseURL, "/")+"/v1/reports/roi", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to construct roi request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to reach document service")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", errors.Errorf("document service returned %d: %s", resp.StatusCode, snippet)
	}

	var out roiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "failed to decode roi response")
	}
	if out.DocumentURL == "" {
		return "", fmt.Errorf("document service returned no document url")
	}
	return out.DocumentURL, nil
}
