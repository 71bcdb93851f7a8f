package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+971501234567", "+971501234567", true},
		{"971501234567", "+971501234567", true},
		{"+971 (50) 123-45.67", "+971501234567", true},
		{"۹۷۱۵۰۱۲۳۴۵۶۷", "+971501234567", true},
		{"12345", "", false},                 // too short
		{"+12345678901234567", "", false},    // too long
		{"1111111111", "", false},            // one unique digit
		{"1212121212", "", false},            // two unique digits
		{"1234567890", "", false},            // ascending run
		{"9876543210", "", false},            // descending run
		{"+9715o1234567", "", false},         // letter inside
		{"call me maybe", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizePhone(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	once, ok := NormalizePhone("+971 50 123 4567")
	require.True(t, ok)
	twice, ok := NormalizePhone(once)
	require.True(t, ok)
	assert.Equal(t, once, twice)
}

func TestParseContactText(t *testing.T) {
	name, phone, ok := ParseContactText("John Smith - +971501234567")
	require.True(t, ok)
	assert.Equal(t, "John Smith", name)
	assert.Equal(t, "+971501234567", phone)

	name, phone, ok = ParseContactText("+971501234567")
	require.True(t, ok)
	assert.Empty(t, name)
	assert.Equal(t, "+971501234567", phone)

	name, phone, ok = ParseContactText("Sara 971509876541")
	require.True(t, ok)
	assert.Equal(t, "Sara", name)
	assert.Equal(t, "+971509876541", phone)

	_, _, ok = ParseContactText("no phone here")
	assert.False(t, ok)

	_, _, ok = ParseContactText("")
	assert.False(t, ok)
}
