package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnrs/adaptive-quiz/internal/quiz"
	"github.com/hnrs/adaptive-quiz/internal/session"
)

var (
	_ session.Repository = (*Memory)(nil)
	_ session.Repository = (*Postgres)(nil)
)

func newSession(created time.Time) quiz.Session {
	return quiz.Session{
		ID:          uuid.NewString(),
		DocumentRef: "4b227777d4dd1fc61c6f884f48641d02b4d121d3fd328cb08b5531fcacdabf8a",
		Title:       "Genetics Review",
		Config:      quiz.Config{Mode: quiz.ModeMixed},
		Status:      quiz.StatusActive,
		MaxScore:    2,
		CreatedAt:   created.UTC().Truncate(time.Microsecond),
	}
}

func twoQuestions() []quiz.QuestionCandidate {
	opts := map[string]string{"A": "adenine", "B": "thymine", "C": "guanine", "D": "N/A"}
	return []quiz.QuestionCandidate{
		{QuestionText: "Which base pairs with thymine?", Options: opts, CorrectAnswer: "A", Difficulty: "easy", Explanation: "A-T pairing."},
		{QuestionText: "Which base pairs with cytosine?", Options: opts, CorrectAnswer: "C", Difficulty: "hard", ReferenceContext: `{"page":3}`},
	}
}

// runContract exercises the behaviour every session.Repository implementation must share.
func runContract(t *testing.T, repo session.Repository) {
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create and read back", func(t *testing.T) {
		sess := newSession(base)
		qs, err := repo.CreateSession(ctx, sess, twoQuestions())
		require.NoError(t, err)
		require.Len(t, qs, 2)
		assert.Less(t, qs[0].ID, qs[1].ID)
		assert.Equal(t, sess.ID, qs[0].SessionID)

		got, err := repo.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, quiz.StatusActive, got.Status)
		assert.Equal(t, "Genetics Review", got.Title)
		assert.Equal(t, quiz.ModeMixed, got.Config.Mode)
		assert.Equal(t, 2.0, got.MaxScore)
		assert.Nil(t, got.CompletedAt)

		listed, err := repo.ListQuestions(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, "Which base pairs with thymine?", listed[0].QuestionText)
		assert.Equal(t, "N/A", listed[0].Options["D"])
		assert.Equal(t, `{"page":3}`, listed[1].ReferenceContext)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := repo.GetSession(ctx, uuid.NewString())
		assert.ErrorIs(t, err, quiz.ErrSessionNotFound)
		_, err = repo.GetSession(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, quiz.ErrSessionNotFound)
	})

	t.Run("scorecard completes once", func(t *testing.T) {
		sess := newSession(base.Add(time.Minute))
		qs, err := repo.CreateSession(ctx, sess, twoQuestions())
		require.NoError(t, err)

		selected := "A"
		done := base.Add(2 * time.Minute)
		card := quiz.Scorecard{
			SessionID: sess.ID,
			Responses: []quiz.StudentResponse{
				{SessionID: sess.ID, QuestionID: qs[0].ID, SelectedAnswer: &selected, IsCorrect: true, Timestamp: done},
				{SessionID: sess.ID, QuestionID: qs[1].ID, Timestamp: done},
			},
			TotalScore:      1,
			MaxScore:        2,
			Accuracy:        50,
			DifficultyStats: map[string]quiz.BucketStat{"easy": {Score: 1, Total: 1}, "hard": {Score: 0, Total: 1}},
			CompletedAt:     done,
		}
		require.NoError(t, repo.SaveScorecard(ctx, card))

		got, err := repo.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, quiz.StatusCompleted, got.Status)
		assert.Equal(t, 50.0, got.Accuracy)
		assert.Equal(t, quiz.BucketStat{Score: 1, Total: 1}, got.DifficultyStats["easy"])
		require.NotNil(t, got.CompletedAt)

		responses, err := repo.ListResponses(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, responses, 2)
		require.NotNil(t, responses[0].SelectedAnswer)
		assert.Equal(t, "A", *responses[0].SelectedAnswer)
		assert.Nil(t, responses[1].SelectedAnswer)

		assert.ErrorIs(t, repo.SaveScorecard(ctx, card), quiz.ErrSessionInvalid)
	})

	t.Run("incidents and auto submit", func(t *testing.T) {
		sess := newSession(base.Add(3 * time.Minute))
		_, err := repo.CreateSession(ctx, sess, twoQuestions())
		require.NoError(t, err)

		for i := 1; i <= 3; i++ {
			n, err := repo.AppendIncident(ctx, quiz.ProctorIncident{
				SessionID:     sess.ID,
				ViolationType: "tab_switch",
				Timestamp:     base.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err)
			assert.Equal(t, i, n)
		}

		moved, err := repo.TransitionStatus(ctx, sess.ID, quiz.StatusActive, quiz.StatusAutoSubmitted)
		require.NoError(t, err)
		assert.True(t, moved)
		moved, err = repo.TransitionStatus(ctx, sess.ID, quiz.StatusActive, quiz.StatusAutoSubmitted)
		require.NoError(t, err)
		assert.False(t, moved)

		_, err = repo.AppendIncident(ctx, quiz.ProctorIncident{SessionID: sess.ID, ViolationType: "tab_switch", Timestamp: base})
		assert.ErrorIs(t, err, quiz.ErrSessionInvalid)

		incidents, err := repo.ListIncidents(ctx, sess.ID)
		require.NoError(t, err)
		assert.Len(t, incidents, 3)

		require.NoError(t, repo.SaveScorecard(ctx, quiz.Scorecard{SessionID: sess.ID, MaxScore: 2, CompletedAt: base, DifficultyStats: map[string]quiz.BucketStat{}}))
		got, err := repo.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, quiz.StatusAutoSubmitted, got.Status)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("concurrent incidents are counted", func(t *testing.T) {
		sess := newSession(base.Add(4 * time.Minute))
		_, err := repo.CreateSession(ctx, sess, nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		counts := make(chan int, 5)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := repo.AppendIncident(ctx, quiz.ProctorIncident{SessionID: sess.ID, ViolationType: "blur", Timestamp: time.Now()})
				if err == nil {
					counts <- n
				}
			}()
		}
		wg.Wait()
		close(counts)

		seen := map[int]bool{}
		for n := range counts {
			seen[n] = true
		}
		assert.Equal(t, map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}, seen)
	})

	t.Run("history and report ref", func(t *testing.T) {
		finished, err := repo.ListFinishedSessions(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(finished), 2)
		for i := 1; i < len(finished); i++ {
			assert.False(t, finished[i].CreatedAt.After(finished[i-1].CreatedAt))
			assert.NotEqual(t, quiz.StatusActive, finished[i].Status)
		}

		id := finished[0].ID
		require.NoError(t, repo.SetReportRef(ctx, id, "/tmp/report.pdf"))
		got, err := repo.GetSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/report.pdf", got.ReportRef)

		assert.ErrorIs(t, repo.SetReportRef(ctx, uuid.NewString(), "x"), quiz.ErrSessionNotFound)
	})
}

func TestMemoryRepository(t *testing.T) {
	runContract(t, NewMemory())
}

func TestMemoryCopiesSlices(t *testing.T) {
	repo := NewMemory()
	sess := newSession(time.Now())
	_, err := repo.CreateSession(context.Background(), sess, twoQuestions())
	require.NoError(t, err)

	qs, err := repo.ListQuestions(context.Background(), sess.ID)
	require.NoError(t, err)
	qs[0].QuestionText = "mutated"

	again, err := repo.ListQuestions(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Which base pairs with thymine?", again[0].QuestionText)
}
