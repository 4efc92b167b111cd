package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckParameterForInjection(t *testing.T) {
	tests := []struct {
		name            string
		value           any
		expectInjection bool
	}{
		{name: "clean string value", value: "12345"},
		{name: "clean email address", value: "user@example.com"},
		{name: "clean UUID", value: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "legitimate apostrophe", value: "O'Brien"},
		{name: "currency amount", value: "$1,234.56"},
		{name: "integer value", value: 100},
		{name: "boolean value", value: true},
		{name: "nil value", value: nil},
		{name: "byte slice is not inspected", value: []byte("' OR '1'='1")},

		{name: "classic quote injection", value: "' OR '1'='1", expectInjection: true},
		{name: "drop table injection", value: "'; DROP TABLE users--", expectInjection: true},
		{name: "union select injection", value: "1 UNION SELECT * FROM passwords", expectInjection: true},
		{name: "comment injection", value: "admin'--", expectInjection: true},
		{name: "time-based blind injection", value: "1' AND SLEEP(5)--", expectInjection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckParameterForInjection("param", tt.value)
			if !tt.expectInjection {
				assert.Nil(t, result)
				return
			}

			require.NotNil(t, result)
			assert.True(t, result.IsSQLi)
			assert.Equal(t, "param", result.ParamName)
			assert.Equal(t, tt.value, result.ParamValue)
			assert.NotEmpty(t, result.Fingerprint)
		})
	}
}

func TestCheckSequence(t *testing.T) {
	t.Run("positional names", func(t *testing.T) {
		results := CheckSequence([]any{"12345", "'; DROP TABLE users--", 100, "' OR 1=1--"}, nil)

		require.Len(t, results, 2)
		assert.Equal(t, "$2", results[0].ParamName)
		assert.Equal(t, "$4", results[1].ParamName)
	})

	t.Run("template names", func(t *testing.T) {
		results := CheckSequence([]any{"admin'--", "normal value"}, []string{"username", "filter"})

		require.Len(t, results, 1)
		assert.Equal(t, "username", results[0].ParamName)
	})

	t.Run("all clean", func(t *testing.T) {
		assert.Empty(t, CheckSequence([]any{"a", 1, nil, 2.5}, nil))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, CheckSequence(nil, nil))
	})
}
