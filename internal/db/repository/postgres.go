package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hnrs/adaptive-quiz/internal/quiz"
)

// pgxDB is satisfied by *pgxpool.Pool and pgx.Tx.
type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores sessions, questions, responses and proctor logs.
type Postgres struct {
	db pgxDB
}

func NewPostgres(db pgxDB) *Postgres {
	return &Postgres{db: db}
}

func pgID(id string) (pgtype.UUID, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return pgtype.UUID{Bytes: [16]byte(parsed), Valid: true}, true
}

func idString(id pgtype.UUID) string {
	return uuid.UUID(id.Bytes).String()
}

const sessionColumns = `id, file_hash, test_name, config, status, total_score, max_score, accuracy,
	difficulty_stats, report_path, created_at, completed_at`

func scanSession(row pgx.Row) (quiz.Session, error) {
	var (
		s           quiz.Session
		id          pgtype.UUID
		status      string
		configJSON  []byte
		statsJSON   []byte
		completedAt *time.Time
	)
	if err := row.Scan(&id, &s.DocumentRef, &s.Title, &configJSON, &status, &s.TotalScore, &s.MaxScore,
		&s.Accuracy, &statsJSON, &s.ReportRef, &s.CreatedAt, &completedAt); err != nil {
		return quiz.Session{}, err
	}
	s.ID = idString(id)
	s.Status = quiz.Status(status)
	s.CompletedAt = completedAt
	if err := json.Unmarshal(configJSON, &s.Config); err != nil {
		return quiz.Session{}, fmt.Errorf("decode config: %w", err)
	}
	if err := json.Unmarshal(statsJSON, &s.DifficultyStats); err != nil {
		return quiz.Session{}, fmt.Errorf("decode difficulty stats: %w", err)
	}
	return s, nil
}

func (p *Postgres) CreateSession(ctx context.Context, sess quiz.Session, questions []quiz.QuestionCandidate) ([]quiz.PersistedQuestion, error) {
	id, ok := pgID(sess.ID)
	if !ok {
		return nil, fmt.Errorf("session id %q is not a uuid", sess.ID)
	}
	configJSON, err := json.Marshal(sess.Config)
	if err != nil {
		return nil, err
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO quiz_sessions (id, file_hash, test_name, config, status, max_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, sess.DocumentRef, sess.Title, configJSON, string(sess.Status), sess.MaxScore, sess.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	persisted := make([]quiz.PersistedQuestion, 0, len(questions))
	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return nil, err
		}
		var qid int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO questions (session_id, question_text, options, correct_answer, difficulty, explanation, reference_context)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			id, q.QuestionText, options, q.CorrectAnswer, q.Difficulty, q.Explanation, q.ReferenceContext,
		).Scan(&qid); err != nil {
			return nil, fmt.Errorf("insert question: %w", err)
		}
		persisted = append(persisted, quiz.PersistedQuestion{ID: qid, SessionID: sess.ID, QuestionCandidate: q})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return persisted, nil
}

func (p *Postgres) GetSession(ctx context.Context, id string) (quiz.Session, error) {
	pid, ok := pgID(id)
	if !ok {
		return quiz.Session{}, quiz.ErrSessionNotFound
	}
	sess, err := scanSession(p.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = $1`, pid))
	if errors.Is(err, pgx.ErrNoRows) {
		return quiz.Session{}, quiz.ErrSessionNotFound
	}
	return sess, err
}

func (p *Postgres) ListFinishedSessions(ctx context.Context) ([]quiz.Session, error) {
	rows, err := p.db.Query(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions
		WHERE status <> 'ACTIVE' ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quiz.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (p *Postgres) ListQuestions(ctx context.Context, sessionID string) ([]quiz.PersistedQuestion, error) {
	pid, ok := pgID(sessionID)
	if !ok {
		return nil, nil
	}
	rows, err := p.db.Query(ctx, `
		SELECT id, question_text, options, correct_answer, difficulty, explanation, reference_context
		FROM questions WHERE session_id = $1 ORDER BY id`, pid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quiz.PersistedQuestion
	for rows.Next() {
		q := quiz.PersistedQuestion{SessionID: sessionID}
		var options []byte
		if err := rows.Scan(&q.ID, &q.QuestionText, &options, &q.CorrectAnswer, &q.Difficulty, &q.Explanation, &q.ReferenceContext); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveScorecard(ctx context.Context, card quiz.Scorecard) error {
	pid, ok := pgID(card.SessionID)
	if !ok {
		return quiz.ErrSessionInvalid
	}
	stats, err := json.Marshal(card.DifficultyStats)
	if err != nil {
		return err
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE quiz_sessions
		SET total_score = $2, max_score = $3, accuracy = $4, difficulty_stats = $5, completed_at = $6,
		    status = CASE WHEN status = 'ACTIVE' THEN 'COMPLETED' ELSE status END
		WHERE id = $1 AND completed_at IS NULL AND status IN ('ACTIVE', 'AUTO_SUBMITTED')`,
		pid, card.TotalScore, card.MaxScore, card.Accuracy, stats, card.CompletedAt)
	if err != nil {
		return fmt.Errorf("update session score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return quiz.ErrSessionInvalid
	}

	rows := make([][]any, 0, len(card.Responses))
	for _, r := range card.Responses {
		rows = append(rows, []any{pid, r.QuestionID, r.SelectedAnswer, r.IsCorrect, r.Timestamp})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"student_responses"},
		[]string{"session_id", "question_id", "selected_answer", "is_correct", "answered_at"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("insert responses: %w", err)
	}

	return tx.Commit(ctx)
}

func (p *Postgres) ListResponses(ctx context.Context, sessionID string) ([]quiz.StudentResponse, error) {
	pid, ok := pgID(sessionID)
	if !ok {
		return nil, nil
	}
	rows, err := p.db.Query(ctx, `
		SELECT question_id, selected_answer, is_correct, answered_at
		FROM student_responses WHERE session_id = $1 ORDER BY id`, pid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quiz.StudentResponse
	for rows.Next() {
		r := quiz.StudentResponse{SessionID: sessionID}
		if err := rows.Scan(&r.QuestionID, &r.SelectedAnswer, &r.IsCorrect, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) AppendIncident(ctx context.Context, incident quiz.ProctorIncident) (int, error) {
	pid, ok := pgID(incident.SessionID)
	if !ok {
		return 0, quiz.ErrSessionInvalid
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// the row lock orders concurrent incidents on one session
	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM quiz_sessions WHERE id = $1 FOR UPDATE`, pid).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && status != string(quiz.StatusActive)) {
		return 0, quiz.ErrSessionInvalid
	}
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO proctor_logs (session_id, violation_type, logged_at) VALUES ($1, $2, $3)`,
		pid, incident.ViolationType, incident.Timestamp); err != nil {
		return 0, fmt.Errorf("insert incident: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM proctor_logs WHERE session_id = $1`, pid).Scan(&count); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return count, nil
}

func (p *Postgres) ListIncidents(ctx context.Context, sessionID string) ([]quiz.ProctorIncident, error) {
	pid, ok := pgID(sessionID)
	if !ok {
		return nil, nil
	}
	rows, err := p.db.Query(ctx, `
		SELECT violation_type, logged_at FROM proctor_logs
		WHERE session_id = $1 ORDER BY logged_at, id`, pid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quiz.ProctorIncident
	for rows.Next() {
		in := quiz.ProctorIncident{SessionID: sessionID}
		if err := rows.Scan(&in.ViolationType, &in.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (p *Postgres) TransitionStatus(ctx context.Context, id string, from, to quiz.Status) (bool, error) {
	pid, ok := pgID(id)
	if !ok {
		return false, nil
	}
	tag, err := p.db.Exec(ctx, `UPDATE quiz_sessions SET status = $3 WHERE id = $1 AND status = $2`,
		pid, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) SetReportRef(ctx context.Context, id, ref string) error {
	pid, ok := pgID(id)
	if !ok {
		return quiz.ErrSessionNotFound
	}
	tag, err := p.db.Exec(ctx, `UPDATE quiz_sessions SET report_path = $2 WHERE id = $1`, pid, ref)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return quiz.ErrSessionNotFound
	}
	return nil
}
