package generation

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"strings"

	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

// AnswerKeyPolicy decides what happens to a candidate whose correct-answer key is not A-D.
type AnswerKeyPolicy string

const (
	// AnswerKeyRepair assigns a uniformly random key.
	AnswerKeyRepair AnswerKeyPolicy = "repair"
	// AnswerKeyDiscard rejects the candidate.
	AnswerKeyDiscard AnswerKeyPolicy = "discard"
)

// RejectReason explains why raw model output was not accepted.
type RejectReason string

const (
	RejectNoObject       RejectReason = "no_object"
	RejectMalformed      RejectReason = "malformed"
	RejectEmptyQuestion  RejectReason = "empty_question"
	RejectBlockedContent RejectReason = "blocked_content"
	RejectRepeatTopic    RejectReason = "repeat_topic"
	RejectAnswerKey      RejectReason = "invalid_answer_key"
)

// PlaceholderOption fills option slots the model left missing or empty.
const PlaceholderOption = "N/A"

var pathTokens = []string{"data/", "uploads/", ".pdf", ".docx", ".pptx", ".txt"}

// DefaultBrandingTokens are institution-branding fragments that must not leak into questions.
var DefaultBrandingTokens = []string{"christ university", "excellence", "service", "mission", "vision"}

// Verdict is the outcome of validating one raw model response.
type Verdict struct {
	Candidate quiz.QuestionCandidate
	Prefix    string
	Reason    RejectReason
}

func (v Verdict) Accepted() bool {
	return v.Reason == ""
}

func reject(reason RejectReason) Verdict {
	return Verdict{Reason: reason}
}

// Validator parses raw model text into a question candidate, applies guardrails and repairs
// recoverable schema defects. It never returns an error: every failure is a rejected Verdict.
type Validator struct {
	blocklist []string
	policy    AnswerKeyPolicy
	pick      func(n int) int
}

type ValidatorOption func(*Validator)

// WithBrandingTokens replaces the branding part of the blocklist. Path tokens always apply.
func WithBrandingTokens(tokens []string) ValidatorOption {
	return func(v *Validator) {
		v.blocklist = buildBlocklist(tokens)
	}
}

func WithAnswerKeyPolicy(policy AnswerKeyPolicy) ValidatorOption {
	return func(v *Validator) {
		if policy == AnswerKeyDiscard {
			v.policy = AnswerKeyDiscard
		} else {
			v.policy = AnswerKeyRepair
		}
	}
}

// WithKeyPicker overrides the random source used for answer-key repair.
func WithKeyPicker(pick func(n int) int) ValidatorOption {
	return func(v *Validator) {
		v.pick = pick
	}
}

func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		blocklist: buildBlocklist(DefaultBrandingTokens),
		policy:    AnswerKeyRepair,
		pick:      rand.IntN,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func buildBlocklist(branding []string) []string {
	list := make([]string, 0, len(pathTokens)+len(branding))
	list = append(list, pathTokens...)
	for _, token := range branding {
		token = strings.ToLower(strings.TrimSpace(token))
		if token != "" {
			list = append(list, token)
		}
	}
	return list
}

type rawQuestion struct {
	QuestionText     json.RawMessage            `json:"question_text"`
	Options          map[string]json.RawMessage `json:"options"`
	CorrectAnswer    json.RawMessage            `json:"correct_answer"`
	Explanation      json.RawMessage            `json:"explanation"`
	ReferenceContext json.RawMessage            `json:"reference_context"`
}

// Validate checks raw against the guardrails. used is only read; the caller claims the
// returned prefix once it decides to keep the candidate. difficulty is stamped on the result.
func (v *Validator) Validate(raw, difficulty string, used *ConceptSet) Verdict {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return reject(RejectNoObject)
	}

	var parsed rawQuestion
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return reject(RejectMalformed)
	}

	text := strings.TrimSpace(textOf(parsed.QuestionText))
	if text == "" {
		return reject(RejectEmptyQuestion)
	}

	lowered := strings.ToLower(text)
	for _, token := range v.blocklist {
		if strings.Contains(lowered, token) {
			return reject(RejectBlockedContent)
		}
	}

	prefix := ConceptPrefix(text)
	if used != nil && used.Contains(prefix) {
		return reject(RejectRepeatTopic)
	}

	options := make(map[string]string, len(quiz.OptionKeys))
	for _, key := range quiz.OptionKeys {
		value := strings.TrimSpace(textOf(parsed.Options[key]))
		if value == "" {
			value = PlaceholderOption
		}
		options[key] = value
	}

	answer := strings.TrimSpace(textOf(parsed.CorrectAnswer))
	if _, ok := options[answer]; !ok {
		if v.policy == AnswerKeyDiscard {
			return reject(RejectAnswerKey)
		}
		answer = quiz.OptionKeys[v.pick(len(quiz.OptionKeys))]
	}

	return Verdict{
		Candidate: quiz.QuestionCandidate{
			QuestionText:     text,
			Options:          options,
			CorrectAnswer:    answer,
			Difficulty:       difficulty,
			Explanation:      strings.TrimSpace(textOf(parsed.Explanation)),
			ReferenceContext: textOf(parsed.ReferenceContext),
		},
		Prefix: prefix,
	}
}

// textOf flattens a JSON value to text. Strings are unquoted; objects, arrays and
// scalars keep their compact JSON form.
func textOf(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
