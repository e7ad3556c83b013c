package domain

import (
	"strings"
	"testing"
)

func TestHazardousText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{
			name: "normal text",
			body: "hello everyone, how are you?",
			want: false,
		},
		{
			name: "empty body",
			body: "",
			want: false,
		},
		{
			name: "oversized body",
			body: strings.Repeat("ab", 5001),
			want: true,
		},
		{
			name: "long identical rune run",
			body: strings.Repeat("a", 51),
			want: true,
		},
		{
			name: "run at the limit is allowed",
			body: strings.Repeat("a", 50),
			want: false,
		},
		{
			name: "run broken up is fine",
			body: strings.Repeat("ab", 100),
			want: false,
		},
		{
			name: "zalgo combining marks",
			body: "h" + strings.Repeat("́", 15) + "i",
			want: true,
		},
		{
			name: "few combining marks are fine",
			body: "café",
			want: false,
		},
		{
			name: "bidi override",
			body: "invoice\u202etxt.exe",
			want: true,
		},
		{
			name: "left-to-right embedding",
			body: "abc\u202adef",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HazardousText(tt.body); got != tt.want {
				t.Errorf("HazardousText mismatch: got %v, want %v", got, tt.want)
			}
		})
	}
}
