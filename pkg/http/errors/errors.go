package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Rule maps a sentinel error onto a status and code. An empty Message echoes err.Error().
type Rule struct {
	Target  error
	Status  int
	Code    string
	Message string
}

// Match returns the first rule whose Target is in err's chain.
func Match(err error, rules []Rule) (Rule, bool) {
	for _, rule := range rules {
		if stderrors.Is(err, rule.Target) {
			if rule.Message == "" {
				rule.Message = err.Error()
			}
			return rule, true
		}
	}
	return Rule{}, false
}

// RespondMapped writes the response for the first matching rule and reports whether one matched.
func RespondMapped(w http.ResponseWriter, err error, rules []Rule) bool {
	rule, ok := Match(err, rules)
	if !ok {
		return false
	}
	RespondError(w, rule.Status, rule.Code, rule.Message)
	return true
}

func RespondError(w http.ResponseWriter, status int, code, message string) {
	write(w, status, ErrorResponse{Error: code, Message: message})
}

// RespondValidationError names the offending request field.
func RespondValidationError(w http.ResponseWriter, code, message, field string) {
	write(w, http.StatusBadRequest, ErrorResponse{Error: code, Message: message, Field: field})
}

func RespondInternalError(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

func RespondNotFound(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusNotFound, code, message)
}

func RespondForbidden(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusForbidden, code, message)
}

func RespondBadRequest(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusBadRequest, code, message)
}

func write(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
