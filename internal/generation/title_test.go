package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		err   error
		want  string
	}{
		{name: "quoted", reply: `"Cell Biology Basics"`, want: "Cell Biology Basics"},
		{name: "first line only", reply: "Thermodynamics Core Laws\nHope this helps", want: "Thermodynamics Core Laws"},
		{name: "branding", reply: "Christ University Handbook", want: "Domain Assessment"},
		{name: "too long", reply: strings.Repeat("word ", 10), want: "Knowledge Review"},
		{name: "completion error", err: errors.New("timeout"), want: "notes"},
		{name: "empty reply", reply: "  ", want: "notes"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &stubCompletion{complete: func(string) (string, error) { return tc.reply, tc.err }}
			got := NewTitler(llm, zerolog.Nop()).Title(context.Background(), "Some document text", "notes")
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTitleTruncatesSample(t *testing.T) {
	var prompt string
	llm := &stubCompletion{complete: func(p string) (string, error) {
		prompt = p
		return "Long Form", nil
	}}

	NewTitler(llm, zerolog.Nop()).Title(context.Background(), strings.Repeat("q", 5000), "f")
	assert.Equal(t, TitleSampleChars, strings.Count(prompt, "q"))
}

func TestTitleEmptySampleSkipsCompletion(t *testing.T) {
	called := false
	llm := &stubCompletion{complete: func(string) (string, error) {
		called = true
		return "x", nil
	}}

	assert.Equal(t, "f", NewTitler(llm, zerolog.Nop()).Title(context.Background(), "", "f"))
	assert.False(t, called)
}
