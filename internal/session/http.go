package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/hnrs/adaptive-quiz/internal/docindex"
	"github.com/hnrs/adaptive-quiz/internal/quiz"
	"github.com/hnrs/adaptive-quiz/internal/report"
	httperrors "github.com/hnrs/adaptive-quiz/pkg/http/errors"
)

// Ledger is the session surface the HTTP handlers need.
type Ledger interface {
	Generate(ctx context.Context, documentRef string, cfg quiz.Config) (GenerateResult, error)
	Submit(ctx context.Context, sessionID string, answers []quiz.Answer) (Result, error)
	ListHistory(ctx context.Context) ([]HistoryEntry, error)
	GetResult(ctx context.Context, sessionID string) (Result, error)
	ReportPath(ctx context.Context, sessionID string) (string, error)
	VerifyReportToken(token, sessionID string) error
}

// IncidentLogger records proctoring incidents.
type IncidentLogger interface {
	LogIncident(ctx context.Context, sessionID, violation string) (IncidentResult, error)
}

// DocumentIngester indexes uploaded documents and returns their reference.
type DocumentIngester interface {
	Ingest(ctx context.Context, filename string, content []byte) (string, error)
}

const maxUploadBytes = 20 << 20

// HTTPHandlers provides the REST endpoints for quiz sessions.
type HTTPHandlers struct {
	ledger   Ledger
	proctor  IncidentLogger
	docs     DocumentIngester
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewHTTPHandlers(ledger Ledger, proctor IncidentLogger, docs DocumentIngester, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		ledger:   ledger,
		proctor:  proctor,
		docs:     docs,
		validate: validator.New(),
		logger:   logger.With().Str("component", "session_http").Logger(),
	}
}

// Register mounts the session routes on mux.
func (h *HTTPHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/upload", h.Upload)
	mux.HandleFunc("POST /api/generate", h.Generate)
	mux.HandleFunc("POST /api/submit", h.Submit)
	mux.HandleFunc("POST /api/proctor/log", h.LogIncident)
	mux.HandleFunc("GET /api/history", h.History)
	mux.HandleFunc("GET /api/history/{id}", h.HistoryDetail)
	mux.HandleFunc("GET /api/report/download/{id}", h.DownloadReport)
}

type GenerateRequest struct {
	FileHash           string                `json:"file_hash" validate:"required"`
	Mode               string                `json:"mode" validate:"required,oneof=mixed custom"`
	CustomDistribution *quiz.DifficultyCount `json:"custom_distribution,omitempty"`
}

type SubmitRequest struct {
	SessionID string        `json:"session_id" validate:"required"`
	Answers   []quiz.Answer `json:"answers"`
}

type IncidentRequest struct {
	SessionID     string `json:"session_id" validate:"required"`
	ViolationType string `json:"violation_type" validate:"required,max=64"`
}

type incidentResponse struct {
	Status         string      `json:"status"`
	ViolationCount int         `json:"violation_count"`
	SessionStatus  quiz.Status `json:"session_status"`
}

type uploadResponse struct {
	FileHash string `json:"file_hash"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// Upload handles POST /api/upload (multipart field "file").
func (h *HTTPHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httperrors.RespondError(w, http.StatusRequestEntityTooLarge, httperrors.ErrCodeUploadTooLarge, "Document exceeds the upload limit")
			return
		}
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Missing multipart field \"file\"")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Could not read upload")
		return
	}

	hash, err := h.docs.Ingest(r.Context(), header.Filename, content)
	if err != nil {
		h.respondServiceError(w, err, "ingest document")
		return
	}
	h.respondJSON(w, http.StatusOK, uploadResponse{
		FileHash: hash,
		Filename: header.Filename,
		Message:  "Success",
	})
}

// Generate handles POST /api/generate
func (h *HTTPHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.ledger.Generate(r.Context(), req.FileHash, quiz.Config{
		Mode:               req.Mode,
		CustomDistribution: req.CustomDistribution,
	})
	if err != nil {
		h.respondServiceError(w, err, "generate quiz")
		return
	}
	h.respondJSON(w, http.StatusCreated, res)
}

// Submit handles POST /api/submit
func (h *HTTPHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.ledger.Submit(r.Context(), req.SessionID, req.Answers)
	if err != nil {
		h.respondServiceError(w, err, "submit quiz")
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// LogIncident handles POST /api/proctor/log
func (h *HTTPHandlers) LogIncident(w http.ResponseWriter, r *http.Request) {
	var req IncidentRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.proctor.LogIncident(r.Context(), req.SessionID, req.ViolationType)
	if err != nil {
		h.respondServiceError(w, err, "log incident")
		return
	}
	h.respondJSON(w, http.StatusOK, incidentResponse{
		Status:         "logged",
		ViolationCount: res.Count,
		SessionStatus:  res.Status,
	})
}

// HistoryResponse wraps the finished attempts, newest first.
type HistoryResponse struct {
	Attempts []HistoryEntry `json:"attempts"`
}

// History handles GET /api/history
func (h *HTTPHandlers) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.ListHistory(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "list history")
		return
	}
	h.respondJSON(w, http.StatusOK, HistoryResponse{Attempts: entries})
}

// HistoryDetail handles GET /api/history/{id}
func (h *HTTPHandlers) HistoryDetail(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.GetResult(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, err, "get result")
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// DownloadReport handles GET /api/report/download/{id}
func (h *HTTPHandlers) DownloadReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.ledger.VerifyReportToken(r.URL.Query().Get("token"), id); err != nil {
		code, msg := httperrors.ErrCodeInvalidToken, "Invalid report token"
		if errors.Is(err, report.ErrExpiredToken) {
			code, msg = httperrors.ErrCodeTokenExpired, "Report link has expired"
		}
		httperrors.RespondForbidden(w, code, msg)
		return
	}

	path, err := h.ledger.ReportPath(r.Context(), id)
	if err != nil {
		if errors.Is(err, quiz.ErrSessionInvalid) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeReportNotReady, "Report not found")
			return
		}
		h.respondServiceError(w, err, "report path")
		return
	}
	if _, err := os.Stat(path); err != nil {
		h.logger.Warn().Err(err).Str("session_id", id).Msg("report file missing")
		httperrors.RespondNotFound(w, httperrors.ErrCodeReportNotReady, "Report not found")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (h *HTTPHandlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return false
	}
	if err := h.validate.StructCtx(r.Context(), dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, verrs[0].Error(), verrs[0].Field())
			return false
		}
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
		return false
	}
	return true
}

// serviceErrors maps domain errors onto HTTP statuses.
var serviceErrors = []httperrors.Rule{
	{Target: docindex.ErrUnsupportedFormat, Status: http.StatusBadRequest, Code: httperrors.ErrCodeUnsupportedFormat},
	{Target: docindex.ErrEmptyDocument, Status: http.StatusBadRequest, Code: httperrors.ErrCodeEmptyDocument},
	{Target: quiz.ErrConfigurationInvalid, Status: http.StatusBadRequest, Code: httperrors.ErrCodeInvalidConfig},
	{Target: quiz.ErrCapabilityUnavailable, Status: http.StatusServiceUnavailable, Code: httperrors.ErrCodeModelUnavailable, Message: "AI model is unavailable"},
	{Target: quiz.ErrGenerationExhausted, Status: http.StatusServiceUnavailable, Code: httperrors.ErrCodeGenerationExhausted, Message: quiz.ErrGenerationExhausted.Error()},
	{Target: quiz.ErrSessionInvalid, Status: http.StatusForbidden, Code: httperrors.ErrCodeSessionInvalid, Message: quiz.ErrSessionInvalid.Error()},
	{Target: context.Canceled, Status: http.StatusServiceUnavailable, Code: httperrors.ErrCodeServiceUnavailable, Message: "Request canceled"},
	{Target: context.DeadlineExceeded, Status: http.StatusServiceUnavailable, Code: httperrors.ErrCodeServiceUnavailable, Message: "Request timed out"},
}

func (h *HTTPHandlers) respondServiceError(w http.ResponseWriter, err error, op string) {
	if httperrors.RespondMapped(w, err, serviceErrors) {
		return
	}
	h.logger.Error().Err(err).Str("op", op).Msg("request failed")
	httperrors.RespondInternalError(w, "Internal server error")
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("encode response")
	}
}
