package services

import (
	"fmt"
	"net/http"
	"time"
)

// ServiceError carries an HTTP status and a stable machine code alongside the
// human message. Controllers translate it into the error envelope.
type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
	Meta    map[string]any
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func validationError(message string) *ServiceError {
	return newServiceError(http.StatusBadRequest, "ASSIGNMENT_INVALID_BODY", message, nil)
}

func notFoundError(message string, cause error) *ServiceError {
	return newServiceError(http.StatusNotFound, "ASSIGNMENT_NOT_FOUND", message, cause)
}

func forbiddenError(message string) *ServiceError {
	return newServiceError(http.StatusForbidden, "ASSIGNMENT_FORBIDDEN", message, nil)
}

func conflictError(message string, cause error) *ServiceError {
	return newServiceError(http.StatusConflict, "ASSIGNMENT_CONFLICT", message, cause)
}

func rateLimitError(retryAfter time.Duration) *ServiceError {
	err := newServiceError(
		http.StatusTooManyRequests,
		"ASSIGNMENT_RATE_LIMITED",
		"escalation was raised too recently",
		nil,
	)
	seconds := int(retryAfter.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	err.Meta = map[string]any{"retry_after_seconds": seconds}
	return err
}

func alreadyEscalatedError() *ServiceError {
	return newServiceError(
		http.StatusConflict,
		"ASSIGNMENT_ALREADY_ESCALATED",
		"assignment is already escalated to this supervisor",
		nil,
	)
}

func noEscalationPathError() *ServiceError {
	return newServiceError(
		http.StatusUnprocessableEntity,
		"ASSIGNMENT_NO_ESCALATION_PATH",
		"no escalation recipient found in the org chain",
		nil,
	)
}
