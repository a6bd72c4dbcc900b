package generation

import (
	"fmt"
	"strings"
)

var queryAspects = []string{
	"definitions and key terms",
	"processes and how they work",
	"causes and effects",
	"comparisons between concepts",
	"examples and applications",
	"principles and rules",
	"limitations and exceptions",
	"important facts and figures",
}

var difficultyFocus = map[string]string{
	"easy":   "basic facts and definitions",
	"medium": "relationships and applied understanding",
	"hard":   "analysis, edge cases and multi-step reasoning",
}

// RetrievalQuery builds a randomized retrieval query biased toward difficulty.
func RetrievalQuery(difficulty string, pick func(n int) int) string {
	aspect := queryAspects[pick(len(queryAspects))]
	focus, ok := difficultyFocus[difficulty]
	if !ok {
		focus = difficulty
	}
	return fmt.Sprintf("%s: %s", aspect, focus)
}

// QuestionPrompt asks for exactly one multiple-choice question as a JSON object.
func QuestionPrompt(difficulty string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write one %s multiple-choice question using only the context above.\n", strings.ToUpper(difficulty))
	b.WriteString("Do not mention file names, folders, institutions, or the document itself.\n")
	b.WriteString("Return ONLY a JSON object with these keys:\n")
	b.WriteString(`{"question_text": "...", "options": {"A": "...", "B": "...", "C": "...", "D": "..."}, `)
	b.WriteString(`"correct_answer": "A", "explanation": "...", "reference_context": "..."}`)
	return b.String()
}

// ContextPrompt frames retrieved passages ahead of an instruction.
func ContextPrompt(passages []string, instruction string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(p))
	}
	b.WriteString("\n")
	b.WriteString(instruction)
	return b.String()
}

func titlePrompt(sample string) string {
	return "Read the text below and reply with a 3-word title describing its subject. " +
		"Reply with the title only.\n\n" + sample
}
