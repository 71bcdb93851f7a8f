package oracle

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResult(t *testing.T) {
	r := decodeResult(`{"lang":"fa","slots":{"budget":"2M","goal":""},"answer":"","confidence":0.9}`)
	assert.Equal(t, "fa", r.Lang)
	assert.Equal(t, map[string]string{"budget": "2M"}, r.Slots, "empty slot values are dropped")
	assert.Equal(t, 0.9, r.Confidence)
	assert.Empty(t, r.FreeText)
}

func TestDecodeResultFencedJSON(t *testing.T) {
	r := decodeResult("```json\n{\"lang\":\"en\",\"slots\":{},\"answer\":\"Yes, foreigners can buy freehold.\",\"confidence\":1}\n```")
	assert.Equal(t, "en", r.Lang)
	assert.Equal(t, "Yes, foreigners can buy freehold.", r.FreeText)
}

func TestDecodeResultMalformed(t *testing.T) {
	r := decodeResult("I could not parse that, sorry.")
	require.NotNil(t, r)
	assert.Empty(t, r.Lang)
	assert.Empty(t, r.Slots)
	assert.Zero(t, r.Confidence)
}

func TestDecodeResultClampsConfidence(t *testing.T) {
	r := decodeResult(`{"lang":"XX","slots":{"budget":"  500k  "},"confidence":7}`)
	assert.Empty(t, r.Lang, "unknown language codes are dropped")
	assert.Equal(t, "500k", r.Slots["budget"])
	assert.Zero(t, r.Confidence)
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := buildSystemPrompt(&Request{
		LangHint: "ru",
		Slots: []SlotField{
			{Name: "goal", Description: "why the user is buying", Enum: []string{"live", "invest"}},
			{Name: "budget", Description: "spending budget"},
		},
		Snippets: []string{"Foreigners may buy freehold in designated zones."},
	})
	assert.Contains(t, prompt, `"ru"`)
	assert.Contains(t, prompt, "goal: why the user is buying (one of: live, invest)")
	assert.Contains(t, prompt, "budget: spending budget")
	assert.True(t, strings.Contains(prompt, "Foreigners may buy freehold"))
}

func TestDisabledOracle(t *testing.T) {
	_, err := Disabled{}.Extract(context.Background(), &Request{Utterance: "hi"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(&Config{Model: "gpt-4o-mini"})
	assert.Error(t, err)
}
