package docindex

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/hnrs/adaptive-quiz/internal/generation"
)

// Completer is the completion backend used to answer prompts over retrieved passages.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type chunk struct {
	text   string
	tokens map[string]struct{}
}

// Index is a loaded, read-only document index. It is safe for concurrent use.
type Index struct {
	hash     string
	filename string
	chunks   []chunk
	llm      Completer
}

func (ix *Index) Hash() string     { return ix.hash }
func (ix *Index) Filename() string { return ix.filename }
func (ix *Index) Len() int         { return len(ix.chunks) }

type scored struct {
	idx   int
	score int
	tie   uint32
}

// Retrieve returns up to topK passages ranked by token overlap with query.
// Ties are broken randomly so repeated queries explore different passages.
func (ix *Index) Retrieve(_ context.Context, query string, topK int) (generation.ContextSet, error) {
	if len(ix.chunks) == 0 {
		return generation.ContextSet{}, errors.New("document index is empty")
	}
	if topK <= 0 {
		topK = generation.RetrievalTopK
	}

	q := tokenize(query)
	ranked := make([]scored, len(ix.chunks))
	for i, c := range ix.chunks {
		s := 0
		for tok := range q {
			if _, ok := c.tokens[tok]; ok {
				s++
			}
		}
		ranked[i] = scored{idx: i, score: s, tie: rand.Uint32()}
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].tie < ranked[b].tie
	})

	n := min(topK, len(ranked))
	set := generation.ContextSet{Passages: make([]string, 0, n)}
	for _, r := range ranked[:n] {
		set.Passages = append(set.Passages, ix.chunks[r.idx].text)
	}
	return set, nil
}

// Answer runs prompt against the completion backend with set as context.
func (ix *Index) Answer(ctx context.Context, set generation.ContextSet, prompt string) (string, error) {
	return ix.llm.Complete(ctx, generation.ContextPrompt(set.Passages, prompt))
}

// Sample returns the leading text of the document, at most n characters.
func (ix *Index) Sample(n int) string {
	var b strings.Builder
	for _, c := range ix.chunks {
		if b.Len() >= n {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.text)
	}
	out := []rune(b.String())
	if len(out) > n {
		out = out[:n]
	}
	return string(out)
}
