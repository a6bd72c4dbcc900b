package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hnrs/adaptive-quiz/internal/generation"
	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

// Repository is the persistence contract for sessions and everything attached to them.
// GetSession returns quiz.ErrSessionNotFound for unknown ids.
type Repository interface {
	// CreateSession writes the session and its questions atomically and returns the
	// questions with their assigned ids, in input order.
	CreateSession(ctx context.Context, sess quiz.Session, questions []quiz.QuestionCandidate) ([]quiz.PersistedQuestion, error)
	GetSession(ctx context.Context, id string) (quiz.Session, error)
	// ListFinishedSessions returns every non-ACTIVE session, newest first.
	ListFinishedSessions(ctx context.Context) ([]quiz.Session, error)
	ListQuestions(ctx context.Context, sessionID string) ([]quiz.PersistedQuestion, error)
	// SaveScorecard stores responses and scores, stamps completed_at and moves ACTIVE to
	// COMPLETED. It returns quiz.ErrSessionInvalid if the session is no longer submittable.
	SaveScorecard(ctx context.Context, card quiz.Scorecard) error
	ListResponses(ctx context.Context, sessionID string) ([]quiz.StudentResponse, error)
	// AppendIncident records an incident on an ACTIVE session and returns the session's
	// incident count. It returns quiz.ErrSessionInvalid for any other status.
	AppendIncident(ctx context.Context, incident quiz.ProctorIncident) (int, error)
	ListIncidents(ctx context.Context, sessionID string) ([]quiz.ProctorIncident, error)
	// TransitionStatus sets status to `to` only if it currently equals `from`.
	TransitionStatus(ctx context.Context, id string, from, to quiz.Status) (bool, error)
	SetReportRef(ctx context.Context, id, ref string) error
}

// Document is an indexed source document.
type Document interface {
	generation.ContextRetriever
	Sample(n int) string
	Filename() string
}

// DocumentSource resolves a document reference. Unknown references wrap quiz.ErrConfigurationInvalid.
type DocumentSource interface {
	Open(ctx context.Context, ref string) (Document, error)
}

// QuestionGenerator runs the per-bucket generation loop.
type QuestionGenerator interface {
	Run(ctx context.Context, retriever generation.ContextRetriever, targets quiz.DifficultyCount) (generation.Result, error)
}

type TitleGenerator interface {
	Title(ctx context.Context, sample, fallback string) string
}

// ReportGenerator renders a finished session and returns the artifact reference.
type ReportGenerator interface {
	Render(ctx context.Context, snapshot quiz.ReportSnapshot) (string, error)
}

// ReportLinks issues and checks report download links.
type ReportLinks interface {
	URL(sessionID string) (string, error)
	Verify(token, sessionID string) error
}

// Service is the quiz session ledger: generation, submission, history and reports.
type Service struct {
	repo      Repository
	docs      DocumentSource
	generator QuestionGenerator
	titles    TitleGenerator
	assembler *Assembler
	reports   ReportGenerator
	links     ReportLinks
	locker    Locker
	now       func() time.Time
	logger    zerolog.Logger
}

type ServiceDeps struct {
	Repo      Repository
	Documents DocumentSource
	Generator QuestionGenerator
	Titles    TitleGenerator
	Reports   ReportGenerator
	Links     ReportLinks
	Locker    Locker
	Now       func() time.Time
}

func NewService(deps ServiceDeps, logger zerolog.Logger) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	locker := deps.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Service{
		repo:      deps.Repo,
		docs:      deps.Documents,
		generator: deps.Generator,
		titles:    deps.Titles,
		assembler: NewAssembler(deps.Repo),
		reports:   deps.Reports,
		links:     deps.Links,
		locker:    locker,
		now:       now,
		logger:    logger.With().Str("component", "session_service").Logger(),
	}
}

// GenerateResult is returned to the student when a quiz is created.
type GenerateResult struct {
	SessionID string                    `json:"session_id"`
	Title     string                    `json:"test_name"`
	Questions []quiz.QuestionView       `json:"questions"`
	Buckets   []generation.BucketReport `json:"buckets"`
}

// Generate builds a new ACTIVE session from an indexed document. Nothing is persisted
// unless at least one question was accepted.
func (s *Service) Generate(ctx context.Context, documentRef string, cfg quiz.Config) (GenerateResult, error) {
	if err := cfg.Validate(); err != nil {
		return GenerateResult{}, err
	}

	doc, err := s.docs.Open(ctx, documentRef)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("open document %s: %w", documentRef, err)
	}

	res, err := s.generator.Run(ctx, doc, cfg.Targets())
	if err != nil {
		return GenerateResult{}, err
	}

	stem := strings.TrimSuffix(doc.Filename(), filepath.Ext(doc.Filename()))
	title := stem
	if s.titles != nil {
		title = s.titles.Title(ctx, doc.Sample(generation.TitleSampleChars), stem)
	}

	sess := quiz.Session{
		ID:          uuid.NewString(),
		DocumentRef: documentRef,
		Title:       title,
		Config:      cfg,
		CreatedAt:   s.now().UTC(),
	}
	views, err := s.assembler.Assemble(ctx, sess, res.Questions)
	if err != nil {
		return GenerateResult{}, err
	}
	sessionsCreated.Inc()

	s.logger.Info().
		Str("session_id", sess.ID).
		Str("file_hash", documentRef).
		Str("mode", cfg.Mode).
		Int("questions", len(views)).
		Msg("quiz session created")

	return GenerateResult{
		SessionID: sess.ID,
		Title:     title,
		Questions: views,
		Buckets:   res.Buckets,
	}, nil
}

// Result is the score summary of a session, returned by Submit and GetResult.
// It never carries questions or the answer key.
type Result struct {
	SessionID       string                     `json:"session_id"`
	Title           string                     `json:"test_name"`
	Status          quiz.Status                `json:"status"`
	TotalScore      float64                    `json:"total_score"`
	MaxScore        float64                    `json:"max_score"`
	Accuracy        float64                    `json:"accuracy"`
	DifficultyStats map[string]quiz.BucketStat `json:"difficulty_breakdown"`
	ReportURL       string                     `json:"report_url,omitempty"`
}

// Submit scores answers for a session, finalizes it and renders the report.
// A report failure does not fail the submission; the result then carries no report URL.
func (s *Service) Submit(ctx context.Context, sessionID string, answers []quiz.Answer) (Result, error) {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !sess.Submittable() {
		return Result{}, quiz.ErrSessionInvalid
	}

	questions, err := s.repo.ListQuestions(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("list questions: %w", err)
	}

	card := Score(sessionID, questions, answers, s.now().UTC())
	if err := s.repo.SaveScorecard(ctx, card); err != nil {
		return Result{}, err
	}

	status := sess.Status
	if status == quiz.StatusActive {
		status = quiz.StatusCompleted
		transitionsTotal.WithLabelValues(string(quiz.StatusCompleted)).Inc()
	}
	s.logger.Info().
		Str("session_id", sessionID).
		Str("status", string(status)).
		Float64("accuracy", card.Accuracy).
		Msg("quiz submitted")

	result := Result{
		SessionID:       sessionID,
		Title:           sess.Title,
		Status:          status,
		TotalScore:      card.TotalScore,
		MaxScore:        card.MaxScore,
		Accuracy:        card.Accuracy,
		DifficultyStats: card.DifficultyStats,
	}

	if url, ok := s.renderReport(ctx, sessionID, questions, card.Responses); ok {
		result.ReportURL = url
	}
	return result, nil
}

func (s *Service) renderReport(ctx context.Context, sessionID string, questions []quiz.PersistedQuestion, responses []quiz.StudentResponse) (string, bool) {
	if s.reports == nil {
		return "", false
	}
	log := s.logger.With().Str("session_id", sessionID).Logger()

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Msg("reload session for report")
		return "", false
	}
	incidents, err := s.repo.ListIncidents(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Msg("list incidents for report")
		return "", false
	}

	ref, err := s.reports.Render(ctx, quiz.ReportSnapshot{
		Session:   sess,
		Questions: questions,
		Responses: responses,
		Incidents: incidents,
	})
	if err != nil {
		log.Warn().Err(err).Msg("render report")
		return "", false
	}
	if err := s.repo.SetReportRef(ctx, sessionID, ref); err != nil {
		log.Warn().Err(err).Msg("store report ref")
		return "", false
	}
	return s.reportURL(sessionID)
}

func (s *Service) reportURL(sessionID string) (string, bool) {
	if s.links == nil {
		return "/api/report/download/" + sessionID, true
	}
	url, err := s.links.URL(sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("sign report link")
		return "", false
	}
	return url, true
}

// HistoryEntry summarizes one finished session.
type HistoryEntry struct {
	SessionID       string                     `json:"session_id"`
	Title           string                     `json:"test_name"`
	Status          quiz.Status                `json:"status"`
	TotalScore      float64                    `json:"total_score"`
	MaxScore        float64                    `json:"max_score"`
	Accuracy        float64                    `json:"accuracy"`
	DifficultyStats map[string]quiz.BucketStat `json:"difficulty_stats"`
	CreatedAt       time.Time                  `json:"created_at"`
	ReportURL       string                     `json:"report_url,omitempty"`
}

// ListHistory returns every non-ACTIVE session, newest first.
func (s *Service) ListHistory(ctx context.Context) ([]HistoryEntry, error) {
	sessions, err := s.repo.ListFinishedSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]HistoryEntry, 0, len(sessions))
	for _, sess := range sessions {
		entry := HistoryEntry{
			SessionID:       sess.ID,
			Title:           sess.Title,
			Status:          sess.Status,
			TotalScore:      sess.TotalScore,
			MaxScore:        sess.MaxScore,
			Accuracy:        sess.Accuracy,
			DifficultyStats: sess.DifficultyStats,
			CreatedAt:       sess.CreatedAt,
		}
		if sess.ReportRef != "" {
			entry.ReportURL, _ = s.reportURL(sess.ID)
		}
		out = append(out, entry)
	}
	return out, nil
}

// GetResult returns the score summary of any session. Unscored sessions report zeros.
func (s *Service) GetResult(ctx context.Context, sessionID string) (Result, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		SessionID:       sess.ID,
		Title:           sess.Title,
		Status:          sess.Status,
		TotalScore:      sess.TotalScore,
		MaxScore:        sess.MaxScore,
		Accuracy:        sess.Accuracy,
		DifficultyStats: sess.DifficultyStats,
	}
	if res.DifficultyStats == nil {
		res.DifficultyStats = map[string]quiz.BucketStat{}
	}
	if sess.ReportRef != "" {
		res.ReportURL, _ = s.reportURL(sess.ID)
	}
	return res, nil
}

// ReportPath returns the stored report artifact of a session.
func (s *Service) ReportPath(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.ReportRef == "" {
		return "", quiz.ErrSessionInvalid
	}
	return sess.ReportRef, nil
}

// VerifyReportToken checks a download token when report links are signed.
func (s *Service) VerifyReportToken(token, sessionID string) error {
	if s.links == nil {
		return nil
	}
	return s.links.Verify(token, sessionID)
}

func (s *Service) getSession(ctx context.Context, id string) (quiz.Session, error) {
	sess, err := s.repo.GetSession(ctx, id)
	if errors.Is(err, quiz.ErrSessionNotFound) {
		return quiz.Session{}, quiz.ErrSessionInvalid
	}
	if err != nil {
		return quiz.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}
