package llm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

var mockSubjects = []string{
	"the water cycle", "mitosis", "supply and demand", "plate tectonics",
	"binary search", "photosynthesis", "the french revolution", "ohm's law",
}

// MockClient returns canned, well-formed questions for local development without a model.
type MockClient struct {
	n atomic.Int64
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Health(context.Context) error { return nil }

func (m *MockClient) Complete(_ context.Context, prompt string) (string, error) {
	n := m.n.Add(1)
	if strings.Contains(prompt, "3-word title") {
		return "Mock Study Guide", nil
	}
	subject := mockSubjects[int(n)%len(mockSubjects)]
	return fmt.Sprintf(`{"question_text": "Item %d: which statement about %s is correct?",
"options": {"A": "It is described in the context", "B": "It never occurs", "C": "It is unrelated", "D": "None of these"},
"correct_answer": "A", "explanation": "The context describes %s.", "reference_context": "mock passage %d"}`,
		n, subject, subject, n), nil
}
