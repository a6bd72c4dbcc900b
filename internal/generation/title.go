package generation

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// TitleSampleChars bounds the document sample sent for title generation.
	TitleSampleChars = 800

	brandedTitle  = "Domain Assessment"
	overlongTitle = "Knowledge Review"
	maxTitleLen   = 40
)

var titleBrandingTokens = []string{"christ", "university", "excellence"}

// Titler derives a short human title for a quiz from a document sample.
type Titler struct {
	llm    CompletionCapability
	logger zerolog.Logger
}

func NewTitler(llm CompletionCapability, logger zerolog.Logger) *Titler {
	return &Titler{
		llm:    llm,
		logger: logger.With().Str("component", "titler").Logger(),
	}
}

// Title never fails: completion errors fall back to fallback.
func (t *Titler) Title(ctx context.Context, sample, fallback string) string {
	if runes := []rune(sample); len(runes) > TitleSampleChars {
		sample = string(runes[:TitleSampleChars])
	}
	if strings.TrimSpace(sample) == "" {
		return fallback
	}

	raw, err := t.llm.Complete(ctx, titlePrompt(sample))
	if err != nil {
		t.logger.Warn().Err(err).Msg("title generation failed")
		return fallback
	}
	return cleanTitle(raw, fallback)
}

func cleanTitle(raw, fallback string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(strings.Trim(title, "\"'`*"))
	if title == "" {
		return fallback
	}

	lowered := strings.ToLower(title)
	for _, token := range titleBrandingTokens {
		if strings.Contains(lowered, token) {
			return brandedTitle
		}
	}
	if len(title) >= maxTitleLen {
		return overlongTitle
	}
	return title
}
