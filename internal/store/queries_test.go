package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_likePattern(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{"plain text", "hello", "%hello%"},
		{"percent matches literally", "50%", `%50\%%`},
		{"underscore matches literally", "user_name", `%user\_name%`},
		{"backslash matches literally", `a\b`, `%a\\b%`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, likePattern(tc.query), "expected pattern to match")
		})
	}
}
