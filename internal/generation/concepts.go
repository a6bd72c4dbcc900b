package generation

import (
	"strings"
	"sync"
)

// ConceptSet holds the topic prefixes accepted during one generation run.
// It is shared by every difficulty bucket of the run and is never reset between them.
type ConceptSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewConceptSet() *ConceptSet {
	return &ConceptSet{seen: make(map[string]struct{})}
}

// Contains reports whether prefix was already claimed.
func (s *ConceptSet) Contains(prefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[prefix]
	return ok
}

// Claim records prefix and returns false if it was already present.
func (s *ConceptSet) Claim(prefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[prefix]; ok {
		return false
	}
	s.seen[prefix] = struct{}{}
	return true
}

func (s *ConceptSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// ConceptPrefix returns the lowercased first three words of a question.
func ConceptPrefix(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}
