// Package oracle wraps the LLM provider behind a single operation: given a
// free-text or voice-transcript utterance plus tenant context, return the
// detected language, extracted qualification slots, and optionally a
// free-text answer when the utterance was a question rather than a slot
// value.
package oracle

import (
	"context"
	"errors"
)

// SlotField describes one slot the extractor may fill.
type SlotField struct {
	Name        string   // e.g. "budget", "property_category"
	Description string   // shown to the model
	Enum        []string // allowed values; empty means free-form
}

// Request is one extraction call.
type Request struct {
	Utterance string
	LangHint  string      // stored lead language, may be corrected by the oracle
	Slots     []SlotField // the full set of expected slots
	Snippets  []string    // tenant knowledge injected as context
}

// Result is the structured oracle answer. Unparsable fields are dropped
// before the result reaches a handler.
type Result struct {
	Lang       string            // detected language code (en, fa, ar, ru)
	Slots      map[string]string // slot name -> extracted value
	FreeText   string            // non-empty when the utterance was a question
	Confidence float64           // 0..1
}

// ErrUnavailable is returned after all retries are exhausted. Handlers
// degrade to button prompts; the turn never fails because of the oracle.
var ErrUnavailable = errors.New("oracle unavailable")

// Oracle is the single abstract operation the qualification core depends on.
type Oracle interface {
	Extract(ctx context.Context, req *Request) (*Result, error)
}

// Disabled is the no-op oracle used when no provider is configured. Every
// call reports unavailability so handlers use buttons only.
type Disabled struct{}

func (Disabled) Extract(context.Context, *Request) (*Result, error) {
	return nil, ErrUnavailable
}
