package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "weighted and lora groups stay whole",
			in:   "(masterpiece:1.2), best quality, <lora:x:1>",
			want: []string{"(masterpiece:1.2)", "best quality", "<lora:x:1>"},
		},
		{
			name: "plain comma split",
			in:   "1girl, solo, long hair",
			want: []string{"1girl", "solo", "long hair"},
		},
		{
			name: "bracket group with internal comma",
			in:   "[artist a, artist b], scenery",
			want: []string{"[artist a, artist b]", "scenery"},
		},
		{
			name: "nested parens",
			in:   "((extra detailed)), sky",
			want: []string{"((extra detailed))", "sky"},
		},
		{
			name: "group glued to bare text",
			in:   "best quality(sharp focus:1.1)",
			want: []string{"best quality", "(sharp focus:1.1)"},
		},
		{
			name: "unclosed group runs to end",
			in:   "ok, (broken:1.2",
			want: []string{"ok", "(broken:1.2"},
		},
		{
			name: "empty fragments dropped",
			in:   " , , a ,,  b , ",
			want: []string{"a", "b"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Tokenize(tc.in))
		})
	}
}

func TestTokenizeBlankInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t", ",,,"} {
		if got := Tokenize(in); len(got) != 0 {
			t.Fatalf("Tokenize(%q) = %v, want empty", in, got)
		}
	}
}

func TestTokenizeNeverReturnsBlankTokens(t *testing.T) {
	inputs := []string{
		"a,, b,  ,c",
		"<>, ( ), [ ]",
		"  (x:1.0) ,,<seg>  [y]  ",
		"日本語, タグ(強調:1.3)",
	}
	for _, in := range inputs {
		for _, tok := range Tokenize(in) {
			if strings.TrimSpace(tok) == "" {
				t.Fatalf("Tokenize(%q) produced blank token", in)
			}
		}
	}
}
