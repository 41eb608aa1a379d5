package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValue_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Null", `null`, `null`},
		{"String", `"hi"`, `"hi"`},
		{"Bool", `true`, `true`},
		{"Small integer", `42`, `42`},
		{"Fraction", `1.5`, `1.5`},
		{"Largest exact integer", `9007199254740992`, `9007199254740992`},
		{"Integer past float precision", `9007199254740993`, `9007199254740993`},
		{"Negative wide integer", `-9223372036854775807`, `-9223372036854775807`},
		{"Wider than uint64", `123456789012345678901234567890`, `123456789012345678901234567890`},
		{"Nested", `{"ids":[9007199254740993,1],"user":{"id":12345678901234567}}`, `{"ids":[9007199254740993,1],"user":{"id":12345678901234567}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v domain.Value
			require.NoError(t, json.Unmarshal([]byte(tt.in), &v))
			out, err := json.Marshal(v)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(out))
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestValue_YAMLRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		text string
	}{
		{"Small integer", "7\n", "7"},
		{"Integer past float precision", "9007199254740993\n", "9007199254740993"},
		{"Fraction", "2.25\n", "2.25"},
		{"String", "hello\n", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v domain.Value
			require.NoError(t, yaml.Unmarshal([]byte(tt.in), &v))
			assert.Equal(t, tt.text, v.Text())

			out, err := yaml.Marshal(v)
			require.NoError(t, err)
			assert.Equal(t, tt.in, string(out))

			var back domain.Value
			require.NoError(t, yaml.Unmarshal(out, &back))
			assert.True(t, v.Equal(back))
		})
	}

	t.Run("Nested map keeps wide integers", func(t *testing.T) {
		var v domain.Value
		require.NoError(t, yaml.Unmarshal([]byte("order:\n  id: 9007199254740993\n  items: [1, 2]\n"), &v))
		id, ok := v.Find("id")
		require.True(t, ok)
		assert.Equal(t, "9007199254740993", id.Text())

		out, err := json.Marshal(v)
		require.NoError(t, err)
		assert.JSONEq(t, `{"order":{"id":9007199254740993,"items":[1,2]}}`, string(out))
	})
}

func TestValue_WideIntegers(t *testing.T) {
	var a, b domain.Value
	require.NoError(t, json.Unmarshal([]byte(`9007199254740993`), &a))
	require.NoError(t, json.Unmarshal([]byte(`9007199254740992`), &b))

	assert.False(t, a.Equal(b), "adjacent wide integers must stay distinct")
	assert.Equal(t, int64(9007199254740993), a.Any())
	assert.True(t, a.Equal(domain.FromAny(int64(9007199254740993))))

	f, ok := a.Numeric()
	require.True(t, ok)
	assert.InDelta(t, 9.007199254740993e15, f, 2)
}
