package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

// Memory is an in-process repository used by tests and the single-binary dev mode.
type Memory struct {
	mu        sync.Mutex
	nextID    int64
	sessions  map[string]quiz.Session
	questions map[string][]quiz.PersistedQuestion
	responses map[string][]quiz.StudentResponse
	incidents map[string][]quiz.ProctorIncident
}

func NewMemory() *Memory {
	return &Memory{
		sessions:  make(map[string]quiz.Session),
		questions: make(map[string][]quiz.PersistedQuestion),
		responses: make(map[string][]quiz.StudentResponse),
		incidents: make(map[string][]quiz.ProctorIncident),
	}
}

func (m *Memory) CreateSession(_ context.Context, sess quiz.Session, questions []quiz.QuestionCandidate) ([]quiz.PersistedQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	persisted := make([]quiz.PersistedQuestion, 0, len(questions))
	for _, q := range questions {
		m.nextID++
		persisted = append(persisted, quiz.PersistedQuestion{ID: m.nextID, SessionID: sess.ID, QuestionCandidate: q})
	}
	if sess.DifficultyStats == nil {
		sess.DifficultyStats = map[string]quiz.BucketStat{}
	}
	m.sessions[sess.ID] = sess
	m.questions[sess.ID] = persisted
	return append([]quiz.PersistedQuestion(nil), persisted...), nil
}

func (m *Memory) GetSession(_ context.Context, id string) (quiz.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return quiz.Session{}, quiz.ErrSessionNotFound
	}
	return sess, nil
}

func (m *Memory) ListFinishedSessions(_ context.Context) ([]quiz.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []quiz.Session
	for _, sess := range m.sessions {
		if sess.Status != quiz.StatusActive {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) ListQuestions(_ context.Context, sessionID string) ([]quiz.PersistedQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]quiz.PersistedQuestion(nil), m.questions[sessionID]...), nil
}

func (m *Memory) SaveScorecard(_ context.Context, card quiz.Scorecard) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[card.SessionID]
	if !ok || !sess.Submittable() {
		return quiz.ErrSessionInvalid
	}

	completedAt := card.CompletedAt
	sess.TotalScore = card.TotalScore
	sess.MaxScore = card.MaxScore
	sess.Accuracy = card.Accuracy
	sess.DifficultyStats = card.DifficultyStats
	sess.CompletedAt = &completedAt
	if sess.Status == quiz.StatusActive {
		sess.Status = quiz.StatusCompleted
	}
	m.sessions[sess.ID] = sess
	m.responses[sess.ID] = append(m.responses[sess.ID], card.Responses...)
	return nil
}

func (m *Memory) ListResponses(_ context.Context, sessionID string) ([]quiz.StudentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]quiz.StudentResponse(nil), m.responses[sessionID]...), nil
}

func (m *Memory) AppendIncident(_ context.Context, incident quiz.ProctorIncident) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[incident.SessionID]
	if !ok || sess.Status != quiz.StatusActive {
		return 0, quiz.ErrSessionInvalid
	}
	m.incidents[incident.SessionID] = append(m.incidents[incident.SessionID], incident)
	return len(m.incidents[incident.SessionID]), nil
}

func (m *Memory) ListIncidents(_ context.Context, sessionID string) ([]quiz.ProctorIncident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]quiz.ProctorIncident(nil), m.incidents[sessionID]...), nil
}

func (m *Memory) TransitionStatus(_ context.Context, id string, from, to quiz.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || sess.Status != from {
		return false, nil
	}
	sess.Status = to
	m.sessions[id] = sess
	return true, nil
}

func (m *Memory) SetReportRef(_ context.Context, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return quiz.ErrSessionNotFound
	}
	sess.ReportRef = ref
	m.sessions[id] = sess
	return nil
}
