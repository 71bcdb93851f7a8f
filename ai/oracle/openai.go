package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Config represents oracle client configuration.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration // per-call budget, default 10s
	RPS      float64       // provider quota guard
}

type client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

const (
	maxAttempts    = 3
	initialBackoff = time.Second
)

// NewClient creates an oracle backed by an OpenAI-compatible provider.
func NewClient(cfg *Config) (Oracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oracle: missing API key")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}

	return &client{
		api:     openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}, nil
}

// extractionPayload is the JSON shape the model is instructed to return.
// Unknown fields are ignored; malformed fields are dropped.
type extractionPayload struct {
	Lang       string            `json:"lang"`
	Slots      map[string]string `json:"slots"`
	Answer     string            `json:"answer"`
	Confidence float64           `json:"confidence"`
}

// Extract runs the extraction with exponential backoff (1s, 2s, 4s) and a
// per-call timeout. After the final failure it returns ErrUnavailable so the
// caller degrades to buttons.
func (c *client) Extract(ctx context.Context, req *Request) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(req)},
		{Role: openai.ChatMessageRoleUser, Content: req.Utterance},
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := c.call(ctx, messages)
		if err == nil {
			return result, nil
		}
		lastErr = err
		slog.Warn("oracle: extraction attempt failed",
			"attempt", attempt,
			"error", err,
		)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *client) call(ctx context.Context, messages []openai.ChatCompletionMessage) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		Messages:    messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from provider")
	}

	return decodeResult(resp.Choices[0].Message.Content), nil
}

// decodeResult enforces the response schema leniently: any field that does
// not parse is dropped rather than failing the extraction.
func decodeResult(content string) *Result {
	content = strings.TrimSpace(content)
	// Some providers wrap JSON in markdown fences despite the response format.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	payload := extractionPayload{}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		slog.Warn("oracle: unparsable response, dropping", "error", err)
		return &Result{Slots: map[string]string{}}
	}

	result := &Result{
		Lang:       normalizeLang(payload.Lang),
		Slots:      map[string]string{},
		FreeText:   strings.TrimSpace(payload.Answer),
		Confidence: payload.Confidence,
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		result.Confidence = 0
	}
	for name, value := range payload.Slots {
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		result.Slots[name] = value
	}
	return result
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	switch lang {
	case "en", "fa", "ar", "ru":
		return lang
	default:
		return ""
	}
}

func buildSystemPrompt(req *Request) string {
	var b strings.Builder
	b.WriteString("You are an entity extractor for a real-estate qualification assistant.\n")
	b.WriteString("Reply with a single JSON object: {\"lang\": ..., \"slots\": {...}, \"answer\": ..., \"confidence\": ...}.\n")
	b.WriteString("lang is the ISO code of the user's language (en, fa, ar, ru).\n")
	if req.LangHint != "" {
		fmt.Fprintf(&b, "The user previously wrote in %q.\n", req.LangHint)
	}
	b.WriteString("Fill slots only when the utterance clearly states them:\n")
	for _, slot := range req.Slots {
		if len(slot.Enum) > 0 {
			fmt.Fprintf(&b, "- %s: %s (one of: %s)\n", slot.Name, slot.Description, strings.Join(slot.Enum, ", "))
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", slot.Name, slot.Description)
		}
	}
	b.WriteString("If the utterance is a question instead of a slot value, leave slots empty and put a short helpful answer in \"answer\", using only the knowledge below.\n")
	b.WriteString("confidence is your 0..1 certainty in the slot values.\n")
	if len(req.Snippets) > 0 {
		b.WriteString("\nKnowledge:\n")
		for _, snippet := range req.Snippets {
			b.WriteString(snippet)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
