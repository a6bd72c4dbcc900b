package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Guardrails lists tokens that must never appear in generated questions.
type Guardrails struct {
	BrandingTokens []string `env:"GUARDRAIL_BRANDING_TOKENS" envSeparator:"," envDefault:"christ university,excellence,service,mission,vision"`
	TokenFile      string   `env:"GUARDRAIL_TOKEN_FILE" envDefault:""`
}

type guardrailFile struct {
	BrandingTokens []string `yaml:"branding_tokens"`
}

// Tokens merges the env list with the optional YAML token file, lowercased and de-duplicated.
func (g Guardrails) Tokens() ([]string, error) {
	all := append([]string(nil), g.BrandingTokens...)

	if g.TokenFile != "" {
		raw, err := os.ReadFile(g.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read guardrail file: %w", err)
		}
		var file guardrailFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse guardrail file: %w", err)
		}
		all = append(all, file.BrandingTokens...)
	}

	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, t := range all {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}
