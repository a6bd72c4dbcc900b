package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

// IncidentThreshold is the incident count at which a session is auto-submitted.
const IncidentThreshold = 3

// IncidentResult is returned after an incident was logged.
type IncidentResult struct {
	Count  int         `json:"violation_count"`
	Status quiz.Status `json:"status"`
}

// Notifier is told when a session has been auto-submitted.
type Notifier interface {
	AutoSubmitted(sessionID string, count int)
}

// Monitor logs proctoring incidents and auto-submits sessions that reach the threshold.
type Monitor struct {
	repo      Repository
	locker    Locker
	threshold int
	notifier  Notifier
	now       func() time.Time
	logger    zerolog.Logger
}

func NewMonitor(repo Repository, locker Locker, logger zerolog.Logger) *Monitor {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Monitor{
		repo:      repo,
		locker:    locker,
		threshold: IncidentThreshold,
		now:       time.Now,
		logger:    logger.With().Str("component", "proctor").Logger(),
	}
}

// SetNotifier registers the listener for auto-submit transitions.
func (m *Monitor) SetNotifier(n Notifier) {
	m.notifier = n
}

// LogIncident records one violation on an ACTIVE session. The call that brings the
// count to the threshold also moves the session to AUTO_SUBMITTED.
func (m *Monitor) LogIncident(ctx context.Context, sessionID, violation string) (IncidentResult, error) {
	unlock, err := m.locker.Lock(ctx, sessionID)
	if err != nil {
		return IncidentResult{}, err
	}
	defer unlock()

	sess, err := m.repo.GetSession(ctx, sessionID)
	if errors.Is(err, quiz.ErrSessionNotFound) {
		incidentsTotal.WithLabelValues("rejected").Inc()
		return IncidentResult{}, quiz.ErrSessionInvalid
	}
	if err != nil {
		return IncidentResult{}, fmt.Errorf("get session: %w", err)
	}
	if sess.Status != quiz.StatusActive {
		incidentsTotal.WithLabelValues("rejected").Inc()
		return IncidentResult{}, quiz.ErrSessionInvalid
	}

	count, err := m.repo.AppendIncident(ctx, quiz.ProctorIncident{
		SessionID:     sessionID,
		ViolationType: violation,
		Timestamp:     m.now().UTC(),
	})
	if err != nil {
		return IncidentResult{}, err
	}

	result := IncidentResult{Count: count, Status: quiz.StatusActive}
	if count < m.threshold {
		incidentsTotal.WithLabelValues("logged").Inc()
		m.logger.Debug().Str("session_id", sessionID).Str("violation", violation).Int("count", count).Msg("incident logged")
		return result, nil
	}

	moved, err := m.repo.TransitionStatus(ctx, sessionID, quiz.StatusActive, quiz.StatusAutoSubmitted)
	if err != nil {
		return IncidentResult{}, fmt.Errorf("auto-submit: %w", err)
	}
	if moved {
		result.Status = quiz.StatusAutoSubmitted
		incidentsTotal.WithLabelValues("auto_submitted").Inc()
		transitionsTotal.WithLabelValues(string(quiz.StatusAutoSubmitted)).Inc()
		m.logger.Info().Str("session_id", sessionID).Int("count", count).Msg("session auto-submitted")
		if m.notifier != nil {
			m.notifier.AutoSubmitted(sessionID, count)
		}
	}
	return result, nil
}
