package quiz

import "time"

// Difficulty buckets, in generation order.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Difficulties lists every bucket in the order the scheduler works through them.
var Difficulties = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Quiz modes.
const (
	ModeMixed  = "mixed"
	ModeCustom = "custom"
)

// OptionKeys are the only answer keys a question may carry.
var OptionKeys = []string{"A", "B", "C", "D"}

// Status is the lifecycle state of a quiz session.
type Status string

const (
	StatusActive        Status = "ACTIVE"
	StatusCompleted     Status = "COMPLETED"
	StatusAutoSubmitted Status = "AUTO_SUBMITTED"
)

// Terminal reports whether no further transition is defined out of s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAutoSubmitted
}

// DifficultyCount is a per-bucket question target.
type DifficultyCount struct {
	Easy   int `json:"easy" validate:"gte=0"`
	Medium int `json:"medium" validate:"gte=0"`
	Hard   int `json:"hard" validate:"gte=0"`
}

// For returns the count for a bucket name.
func (d DifficultyCount) For(difficulty string) int {
	switch difficulty {
	case DifficultyEasy:
		return d.Easy
	case DifficultyMedium:
		return d.Medium
	case DifficultyHard:
		return d.Hard
	}
	return 0
}

// Config is the quiz request configuration. It is snapshotted onto the session.
type Config struct {
	Mode               string           `json:"mode" validate:"required,oneof=mixed custom"`
	CustomDistribution *DifficultyCount `json:"custom_distribution,omitempty" validate:"required_if=Mode custom"`
}

// QuestionCandidate is a validated, repaired model output.
type QuestionCandidate struct {
	QuestionText     string            `json:"question_text"`
	Options          map[string]string `json:"options"`
	CorrectAnswer    string            `json:"correct_answer"`
	Difficulty       string            `json:"difficulty"`
	Explanation      string            `json:"explanation"`
	ReferenceContext string            `json:"reference_context"`
}

// PersistedQuestion is a candidate bound to a session.
type PersistedQuestion struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	QuestionCandidate
}

// QuestionView is the presentation form handed to students (no answer, no explanation).
type QuestionView struct {
	ID           int64             `json:"id"`
	QuestionText string            `json:"question_text"`
	Options      map[string]string `json:"options"`
	Difficulty   string            `json:"difficulty"`
}

// View reduces a persisted question to its presentation form.
func (q PersistedQuestion) View() QuestionView {
	return QuestionView{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		Options:      q.Options,
		Difficulty:   q.Difficulty,
	}
}

// BucketStat is the per-difficulty score breakdown.
type BucketStat struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

// Session is a generated quiz attempt.
type Session struct {
	ID              string                `json:"session_id"`
	DocumentRef     string                `json:"file_hash"`
	Title           string                `json:"test_name"`
	Config          Config                `json:"config"`
	Status          Status                `json:"status"`
	TotalScore      float64               `json:"total_score"`
	MaxScore        float64               `json:"max_score"`
	Accuracy        float64               `json:"accuracy"`
	DifficultyStats map[string]BucketStat `json:"difficulty_stats"`
	CreatedAt       time.Time             `json:"created_at"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
	ReportRef       string                `json:"report_ref,omitempty"`
}

// Answer is one submitted (question id, selected key) pair.
type Answer struct {
	QuestionID     int64  `json:"question_id"`
	SelectedAnswer string `json:"selected_answer"`
}

// StudentResponse is a scored answer.
type StudentResponse struct {
	SessionID      string    `json:"session_id"`
	QuestionID     int64     `json:"question_id"`
	SelectedAnswer *string   `json:"selected_answer"`
	IsCorrect      bool      `json:"is_correct"`
	Timestamp      time.Time `json:"timestamp"`
}

// ProctorIncident is an integrity-violation event.
type ProctorIncident struct {
	SessionID     string    `json:"session_id"`
	ViolationType string    `json:"violation_type"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReportSnapshot is the read-only view handed to the report renderer.
type ReportSnapshot struct {
	Session   Session
	Questions []PersistedQuestion
	Responses []StudentResponse
	Incidents []ProctorIncident
}

// Scorecard is the outcome of scoring one submission.
type Scorecard struct {
	SessionID       string
	Responses       []StudentResponse
	TotalScore      float64
	MaxScore        float64
	Accuracy        float64
	DifficultyStats map[string]BucketStat
	CompletedAt     time.Time
}

// Submittable reports whether a scoring call may still be applied to s.
// Auto-submitted sessions accept exactly one scoring call.
func (s Session) Submittable() bool {
	if s.CompletedAt != nil {
		return false
	}
	return s.Status == StatusActive || s.Status == StatusAutoSubmitted
}
