package docindex

import (
	"strings"
	"unicode"
)

// MaxChunkChars bounds a stored passage.
const MaxChunkChars = 800

// Chunk splits text into passages of at most limit characters, keeping paragraphs
// together where they fit and breaking long paragraphs on word boundaries.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxChunkChars
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}

	for _, para := range splitParagraphs(text) {
		if len(para) > limit {
			flush()
			chunks = append(chunks, splitWords(para, limit)...)
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(para) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return chunks
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitWords(para string, limit int) []string {
	var out []string
	var cur strings.Builder
	for _, w := range strings.Fields(para) {
		for len(w) > limit {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			out = append(out, w[:limit])
			w = w[limit:]
		}
		if w == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+1+len(w) > limit {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "was": {}, "were": {}, "have": {}, "has": {}, "not": {}, "but": {},
	"its": {}, "into": {}, "than": {}, "then": {}, "also": {}, "their": {}, "they": {},
}

// tokenize lowercases text and keeps distinct words of three or more letters.
func tokenize(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}
