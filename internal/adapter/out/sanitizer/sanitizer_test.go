package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTMLSanitizer_Sanitize(t *testing.T) {
	t.Parallel()

	s := NewHTMLSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "allowed tags survive",
			in:   `hello <strong>world</strong> with <i>style</i> and <code>x := 1</code>`,
			want: `hello <strong>world</strong> with <i>style</i> and <code>x := 1</code>`,
		},
		{
			name: "script is dropped, text of unknown tags kept",
			in:   `<script>alert(1)</script><b>bold</b> stays`,
			want: `bold stays`,
		},
		{
			name: "anchor keeps href and title",
			in:   `<a href="https://example.com" title="ex">link</a>`,
			want: `<a href="https://example.com" title="ex" rel="nofollow">link</a>`,
		},
		{
			name: "javascript scheme is rejected",
			in:   `<a href="javascript:alert(1)">bad</a>`,
			want: `bad`,
		},
		{
			name: "event handlers are stripped",
			in:   `<strong onclick="steal()">hi</strong>`,
			want: `<strong>hi</strong>`,
		},
		{
			name: "plain text untouched",
			in:   `no markup at all`,
			want: `no markup at all`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, s.Sanitize(tt.in))
		})
	}
}
