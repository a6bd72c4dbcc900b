package quiz

import "errors"

var (
	// ErrConfigurationInvalid is returned for bad quiz configs or unresolvable document references.
	ErrConfigurationInvalid = errors.New("invalid quiz configuration")
	// ErrCapabilityUnavailable is returned when the completion capability fails its health probe.
	ErrCapabilityUnavailable = errors.New("completion capability unavailable")
	// ErrGenerationExhausted is returned when every bucket ran out of attempts with nothing accepted.
	ErrGenerationExhausted = errors.New("the model failed to generate any valid questions from this document")
	// ErrSessionInvalid is returned for missing sessions or sessions in the wrong state.
	ErrSessionInvalid = errors.New("quiz session has expired or is invalid")
	// ErrSessionNotFound is returned by repositories when no session row exists.
	ErrSessionNotFound = errors.New("quiz session not found")
)
