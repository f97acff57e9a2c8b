package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractReply(t *testing.T) {
	cases := []struct {
		name string
		body any
		want string
	}{
		{"primary key", map[string]any{"resposta-i.a": "A", "response": "B"}, "A"},
		{"response key", map[string]any{"response": "B", "message": "C"}, "B"},
		{"message key", map[string]any{"message": "C"}, "C"},
		{"empty primary skipped", map[string]any{"resposta-i.a": "", "message": "C"}, "C"},
		{"non string ignored", map[string]any{"response": 42}, FallbackReply},
		{"nothing recognisable", map[string]any{"other": "x"}, FallbackReply},
		{"array first item", []any{map[string]any{"response": "D"}, map[string]any{"response": "E"}}, "D"},
		{"empty array", []any{}, FallbackReply},
		{"scalar", "hello", FallbackReply},
		{"nil", nil, FallbackReply},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractReply(tc.body))
		})
	}
}
