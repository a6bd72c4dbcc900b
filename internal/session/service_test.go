package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hnrs/adaptive-quiz/internal/db/repository"
	"github.com/hnrs/adaptive-quiz/internal/generation"
	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

type stubDocument struct {
	filename string
	sample   string
}

func (d stubDocument) Retrieve(context.Context, string, int) (generation.ContextSet, error) {
	return generation.ContextSet{Passages: []string{"passage"}}, nil
}

func (d stubDocument) Answer(context.Context, generation.ContextSet, string) (string, error) {
	return "", nil
}

func (d stubDocument) Sample(int) string { return d.sample }
func (d stubDocument) Filename() string  { return d.filename }

type stubDocuments struct {
	docs map[string]stubDocument
}

func (s stubDocuments) Open(_ context.Context, ref string) (Document, error) {
	doc, ok := s.docs[ref]
	if !ok {
		return nil, fmt.Errorf("%w: unknown document", quiz.ErrConfigurationInvalid)
	}
	return doc, nil
}

type stubGenerator struct {
	mu      sync.Mutex
	calls   int
	targets quiz.DifficultyCount
	result  generation.Result
	err     error
}

func (g *stubGenerator) Run(_ context.Context, _ generation.ContextRetriever, targets quiz.DifficultyCount) (generation.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.targets = targets
	return g.result, g.err
}

type stubTitles struct{ title string }

func (s stubTitles) Title(_ context.Context, _, fallback string) string {
	if s.title == "" {
		return fallback
	}
	return s.title
}

type stubReports struct {
	dir      string
	err      error
	rendered []quiz.ReportSnapshot
}

func (r *stubReports) Render(_ context.Context, snap quiz.ReportSnapshot) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.rendered = append(r.rendered, snap)
	path := filepath.Join(r.dir, "report_"+snap.Session.ID+".pdf")
	return path, os.WriteFile(path, []byte("%PDF-1.3 stub"), 0o644)
}

type countingRepo struct {
	*repository.Memory
	mu      sync.Mutex
	creates int
}

func (c *countingRepo) CreateSession(ctx context.Context, sess quiz.Session, qs []quiz.QuestionCandidate) ([]quiz.PersistedQuestion, error) {
	c.mu.Lock()
	c.creates++
	c.mu.Unlock()
	return c.Memory.CreateSession(ctx, sess, qs)
}

func candidate(text, difficulty, answer string) quiz.QuestionCandidate {
	return quiz.QuestionCandidate{
		QuestionText:  text,
		Options:       map[string]string{"A": "one", "B": "two", "C": "three", "D": "four"},
		CorrectAnswer: answer,
		Difficulty:    difficulty,
		Explanation:   "because",
	}
}

const docHash = "4b227777d4dd1fc61c6f884f48641d02b4d121d3fd328cb08b5531fcacdabf8a"

type fixture struct {
	repo    *countingRepo
	gen     *stubGenerator
	reports *stubReports
	svc     *Service
	monitor *Monitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: &countingRepo{Memory: repository.NewMemory()},
		gen: &stubGenerator{result: generation.Result{
			Questions: []quiz.QuestionCandidate{
				candidate("Which organelle makes ATP?", "easy", "A"),
				candidate("Which base pairs with adenine?", "easy", "B"),
				candidate("Which enzyme unwinds DNA?", "hard", "C"),
			},
			Buckets: []generation.BucketReport{{Difficulty: "easy", Target: 2, Generated: 2, Attempts: 2}},
		}},
		reports: &stubReports{dir: t.TempDir()},
	}
	locker := NewLocalLocker()
	f.svc = NewService(ServiceDeps{
		Repo:      f.repo,
		Documents: stubDocuments{docs: map[string]stubDocument{docHash: {filename: "biology_notes.txt", sample: "cells"}}},
		Generator: f.gen,
		Titles:    stubTitles{},
		Reports:   f.reports,
		Locker:    locker,
	}, zerolog.Nop())
	f.monitor = NewMonitor(f.repo, locker, zerolog.Nop())
	return f
}

func (f *fixture) generate(t *testing.T) GenerateResult {
	t.Helper()
	res, err := f.svc.Generate(context.Background(), docHash, quiz.Config{Mode: quiz.ModeMixed})
	require.NoError(t, err)
	return res
}

func TestGenerateCreatesActiveSession(t *testing.T) {
	f := newFixture(t)

	res := f.generate(t)

	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "biology_notes", res.Title)
	require.Len(t, res.Questions, 3)
	assert.Equal(t, "Which organelle makes ATP?", res.Questions[0].QuestionText)
	assert.Equal(t, quiz.DifficultyCount{Easy: 10, Medium: 10, Hard: 10}, f.gen.targets)

	sess, err := f.repo.GetSession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusActive, sess.Status)
	assert.Equal(t, 3.0, sess.MaxScore)
	assert.Equal(t, docHash, sess.DocumentRef)
}

func TestGenerateCustomTargets(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Generate(context.Background(), docHash, quiz.Config{
		Mode:               quiz.ModeCustom,
		CustomDistribution: &quiz.DifficultyCount{Easy: 1, Medium: 0, Hard: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, quiz.DifficultyCount{Easy: 1, Hard: 4}, f.gen.targets)
}

func TestGenerateRejections(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Generate(context.Background(), docHash, quiz.Config{Mode: "random"})
		assert.ErrorIs(t, err, quiz.ErrConfigurationInvalid)
		assert.Zero(t, f.gen.calls)
	})

	t.Run("unknown document", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Generate(context.Background(), "missing", quiz.Config{Mode: quiz.ModeMixed})
		assert.ErrorIs(t, err, quiz.ErrConfigurationInvalid)
		assert.Zero(t, f.gen.calls)
	})

	t.Run("exhausted creates nothing", func(t *testing.T) {
		f := newFixture(t)
		f.gen.result = generation.Result{}
		f.gen.err = quiz.ErrGenerationExhausted
		_, err := f.svc.Generate(context.Background(), docHash, quiz.Config{Mode: quiz.ModeMixed})
		assert.ErrorIs(t, err, quiz.ErrGenerationExhausted)
		assert.Zero(t, f.repo.creates)
	})

	t.Run("capability unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.gen.err = fmt.Errorf("%w: connection refused", quiz.ErrCapabilityUnavailable)
		_, err := f.svc.Generate(context.Background(), docHash, quiz.Config{Mode: quiz.ModeMixed})
		assert.ErrorIs(t, err, quiz.ErrCapabilityUnavailable)
		assert.Zero(t, f.repo.creates)
	})
}

func answersFor(res GenerateResult, keys ...string) []quiz.Answer {
	out := make([]quiz.Answer, 0, len(keys))
	for i, k := range keys {
		out = append(out, quiz.Answer{QuestionID: res.Questions[i].ID, SelectedAnswer: k})
	}
	return out
}

func TestSubmitCompletesSession(t *testing.T) {
	f := newFixture(t)
	gen := f.generate(t)

	res, err := f.svc.Submit(context.Background(), gen.SessionID, answersFor(gen, "A", "D", "C"))
	require.NoError(t, err)

	assert.Equal(t, quiz.StatusCompleted, res.Status)
	assert.Equal(t, 2.0, res.TotalScore)
	assert.Equal(t, 3.0, res.MaxScore)
	assert.InDelta(t, 200.0/3, res.Accuracy, 1e-9)
	assert.Equal(t, quiz.BucketStat{Score: 1, Total: 2}, res.DifficultyStats["easy"])
	assert.Equal(t, "/api/report/download/"+gen.SessionID, res.ReportURL)

	require.Len(t, f.reports.rendered, 1)
	assert.Equal(t, quiz.StatusCompleted, f.reports.rendered[0].Session.Status)
	assert.Len(t, f.reports.rendered[0].Responses, 3)

	_, err = f.svc.Submit(context.Background(), gen.SessionID, answersFor(gen, "A", "B", "C"))
	assert.ErrorIs(t, err, quiz.ErrSessionInvalid)
}

func TestSubmitUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, quiz.ErrSessionInvalid)
}

func TestSubmitAfterAutoSubmitAllowedOnce(t *testing.T) {
	f := newFixture(t)
	gen := f.generate(t)
	ctx := context.Background()

	for i := 0; i < IncidentThreshold; i++ {
		_, err := f.monitor.LogIncident(ctx, gen.SessionID, "tab_switch")
		require.NoError(t, err)
	}

	res, err := f.svc.Submit(ctx, gen.SessionID, answersFor(gen, "A"))
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusAutoSubmitted, res.Status)
	assert.Equal(t, 1.0, res.TotalScore)

	sess, err := f.repo.GetSession(ctx, gen.SessionID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusAutoSubmitted, sess.Status)
	assert.NotNil(t, sess.CompletedAt)

	_, err = f.svc.Submit(ctx, gen.SessionID, answersFor(gen, "A"))
	assert.ErrorIs(t, err, quiz.ErrSessionInvalid)
}

func TestSubmitSurvivesReportFailure(t *testing.T) {
	f := newFixture(t)
	f.reports.err = errors.New("disk full")
	gen := f.generate(t)

	res, err := f.svc.Submit(context.Background(), gen.SessionID, answersFor(gen, "A", "B", "C"))
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Accuracy)
	assert.Empty(t, res.ReportURL)

	_, err = f.svc.ReportPath(context.Background(), gen.SessionID)
	assert.ErrorIs(t, err, quiz.ErrSessionInvalid)
}

func TestConcurrentSubmitsScoreOnce(t *testing.T) {
	f := newFixture(t)
	gen := f.generate(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Submit(context.Background(), gen.SessionID, answersFor(gen, "A", "B", "C")); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	responses, err := f.repo.ListResponses(context.Background(), gen.SessionID)
	require.NoError(t, err)
	assert.Len(t, responses, 3)
}

func TestHistoryAndResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { now = now.Add(time.Hour); return now }

	first := f.generate(t)
	second := f.generate(t)
	active := f.generate(t)

	_, err := f.svc.Submit(ctx, first.SessionID, answersFor(first, "A"))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, second.SessionID, answersFor(second, "B"))
	require.NoError(t, err)

	history, err := f.svc.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.SessionID, history[0].SessionID)
	assert.Equal(t, first.SessionID, history[1].SessionID)
	assert.NotEmpty(t, history[0].ReportURL)

	res, err := f.svc.GetResult(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusCompleted, res.Status)
	assert.Equal(t, 1.0, res.TotalScore)
	assert.Equal(t, 3.0, res.MaxScore)
	assert.NotEmpty(t, res.ReportURL)

	pending, err := f.svc.GetResult(ctx, active.SessionID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusActive, pending.Status)
	assert.Zero(t, pending.TotalScore)
	assert.Empty(t, pending.DifficultyStats)
	assert.Empty(t, pending.ReportURL)

	_, err = f.svc.GetResult(ctx, "missing")
	assert.ErrorIs(t, err, quiz.ErrSessionInvalid)

	path, err := f.svc.ReportPath(ctx, first.SessionID)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestResultBeforeScoringAfterAutoSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gen := f.generate(t)

	for i := 0; i < IncidentThreshold; i++ {
		_, err := f.monitor.LogIncident(ctx, gen.SessionID, "tab_switch")
		require.NoError(t, err)
	}

	res, err := f.svc.GetResult(ctx, gen.SessionID)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusAutoSubmitted, res.Status)
	assert.Zero(t, res.TotalScore)
	assert.Zero(t, res.Accuracy)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_answer")
	assert.NotContains(t, string(raw), "questions")

	scored, err := f.svc.Submit(ctx, gen.SessionID, answersFor(gen, "A", "B", "A"))
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusAutoSubmitted, scored.Status)
	assert.Equal(t, 2.0, scored.TotalScore)
}
