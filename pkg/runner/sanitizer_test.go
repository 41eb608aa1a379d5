package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput_SizeLimit(t *testing.T) {
	limit := DefaultMaxInputSize

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeInput(strings.Repeat("a", tt.inputSize))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSanitizeInput_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "3")
	_, err := SanitizeInput("abcd")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	t.Setenv(EnvMaxInputSize, "garbage")
	assert.Equal(t, DefaultMaxInputSize, MaxInputSize())
}

func TestSanitizeInput_ControlChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean", "hello", "hello"},
		{"keeps whitespace controls", "a\tb\nc\r", "a\tb\nc\r"},
		{"strips ansi escape", "\x1b[31mred\x1b[0m", "[31mred[0m"},
		{"strips null and bell", "a\x00b\x07c", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeInput_InvalidUTF8(t *testing.T) {
	_, err := SanitizeInput("bad \xff byte")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestParseJSONInput(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		input string
		media string
	}{
		{"json string", `"hello"`, "hello", ""},
		{"request object", `{"user_input":"hi","media_url":"a.png"}`, "hi", "a.png"},
		{"raw text", `plain words`, "plain words", ""},
		{"broken object", `{oops`, "{oops", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := parseJSONInput(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.input, req.Input)
			assert.Equal(t, tt.media, req.MediaURL)
		})
	}
}
