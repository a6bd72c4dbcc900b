package session

import (
	"context"
	"fmt"

	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

// Assembler persists a generated session together with its questions and returns
// the student-facing views in generation order.
type Assembler struct {
	repo Repository
}

func NewAssembler(repo Repository) *Assembler {
	return &Assembler{repo: repo}
}

// Assemble stores sess and candidates in one atomic write. MaxScore is set to the candidate count.
func (a *Assembler) Assemble(ctx context.Context, sess quiz.Session, candidates []quiz.QuestionCandidate) ([]quiz.QuestionView, error) {
	sess.Status = quiz.StatusActive
	sess.MaxScore = float64(len(candidates))

	persisted, err := a.repo.CreateSession(ctx, sess, candidates)
	if err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	views := make([]quiz.QuestionView, 0, len(persisted))
	for _, q := range persisted {
		views = append(views, q.View())
	}
	return views, nil
}
