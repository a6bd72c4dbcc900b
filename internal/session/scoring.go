package session

import (
	"time"

	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

// Score grades answers against the persisted questions of one session.
// Answers referencing unknown question ids are dropped, as are repeat answers
// to a question already graded in this submission. Max score is the number of
// persisted questions, not the number answered. Accuracy is stored unrounded.
func Score(sessionID string, questions []quiz.PersistedQuestion, answers []quiz.Answer, now time.Time) quiz.Scorecard {
	byID := make(map[int64]quiz.PersistedQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	card := quiz.Scorecard{
		SessionID:       sessionID,
		Responses:       make([]quiz.StudentResponse, 0, len(answers)),
		DifficultyStats: make(map[string]quiz.BucketStat),
		MaxScore:        float64(len(questions)),
		CompletedAt:     now,
	}

	graded := make(map[int64]struct{}, len(answers))
	correct := 0
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		if _, dup := graded[a.QuestionID]; dup {
			continue
		}
		graded[a.QuestionID] = struct{}{}

		isCorrect := a.SelectedAnswer != "" && a.SelectedAnswer == q.CorrectAnswer
		stat := card.DifficultyStats[q.Difficulty]
		stat.Total++
		if isCorrect {
			stat.Score++
			correct++
		}
		card.DifficultyStats[q.Difficulty] = stat

		var selected *string
		if a.SelectedAnswer != "" {
			s := a.SelectedAnswer
			selected = &s
		}
		card.Responses = append(card.Responses, quiz.StudentResponse{
			SessionID:      sessionID,
			QuestionID:     q.ID,
			SelectedAnswer: selected,
			IsCorrect:      isCorrect,
			Timestamp:      now,
		})
	}

	card.TotalScore = float64(correct)
	if card.MaxScore > 0 {
		card.Accuracy = float64(correct) / card.MaxScore * 100
	}
	return card
}
