package errors

// Request errors
const (
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeInvalidConfig    = "invalid_quiz_config"
	ErrCodeInvalidPayload   = "invalid_payload"
)

// Upload errors
const (
	ErrCodeUnsupportedFormat = "unsupported_format"
	ErrCodeEmptyDocument     = "empty_document"
	ErrCodeUploadTooLarge    = "upload_too_large"
)

// Session and report errors
const (
	ErrCodeSessionInvalid = "session_invalid"
	ErrCodeInvalidToken   = "invalid_token"
	ErrCodeTokenExpired   = "token_expired"
	ErrCodeReportNotReady = "report_not_ready"
)

// Generation and server errors
const (
	ErrCodeModelUnavailable    = "model_unavailable"
	ErrCodeGenerationExhausted = "generation_exhausted"
	ErrCodeServiceUnavailable  = "service_unavailable"
	ErrCodeInternalError       = "internal_error"
)
