package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{
			name: "bare object",
			in:   `{"a":1}`,
			want: `{"a":1}`,
			ok:   true,
		},
		{
			name: "fenced with language tag",
			in:   "여기 결과입니다:\n```json\n{\"a\":1}\n```",
			want: `{"a":1}`,
			ok:   true,
		},
		{
			name: "object embedded in prose",
			in:   `분류 결과는 {"intent":"outlook","nested":{"x":1}} 입니다.`,
			want: `{"intent":"outlook","nested":{"x":1}}`,
			ok:   true,
		},
		{
			name: "braces inside string literal",
			in:   `{"msg":"use { and } carefully"}`,
			want: `{"msg":"use { and } carefully"}`,
			ok:   true,
		},
		{
			name: "array",
			in:   `결과: [1,2,3]`,
			want: `[1,2,3]`,
			ok:   true,
		},
		{
			name: "no json",
			in:   "죄송합니다, 분류할 수 없습니다.",
			ok:   false,
		},
		{
			name: "unbalanced",
			in:   `{"a":1`,
			ok:   false,
		},
		{
			name: "balanced but invalid syntax",
			in:   `{intent: outlook,}`,
			ok:   false,
		},
		{
			name: "fenced non-json block",
			in:   "```json\n분류할 수 없습니다\n```",
			ok:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSON(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
