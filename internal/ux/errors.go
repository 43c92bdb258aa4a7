package ux

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\n💡 Suggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

var codeSuggestions = map[errors.ErrorCode]string{
	errors.ErrCodeSessionMissing:  "Log in first: schoolctl auth login",
	errors.ErrCodeSessionInvalid:  "Log in again: schoolctl auth login",
	errors.ErrCodeSessionRefresh:  "Log in again: schoolctl auth login",
	errors.ErrCodeSessionNotReady: "Pick an academic year: schoolctl year select",
	errors.ErrCodeRoleNotChosen:   "Pick a role: schoolctl role select",
	errors.ErrCodeRoleNotGranted:  "List your roles: schoolctl role list",
	errors.ErrCodeRoleUnknown:     "List your roles: schoolctl role list",
	errors.ErrCodeYearUnavailable: "List the offered years: schoolctl year list",
	errors.ErrCodeGatewayNetwork:  "Check the API URL: schoolctl config get api_url",
	errors.ErrCodeGatewayContract: "Check the OpenAPI document set in openapi",
	errors.ErrCodeStorageCrypto:   "Check SCHOOLCTL_STORAGE_PASSPHRASE",
	errors.ErrCodeStorageDriver:   "Check storage settings: schoolctl config view",
	errors.ErrCodeConfigInvalid:   "Check the profile: schoolctl config view",
}

// EnhanceError adds a suggestion to err unless it already carries one.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	var coded *errors.Error
	if stderrors.As(err, &coded) && len(coded.Suggestions) > 0 {
		return err
	}
	if suggestion, ok := codeSuggestions[errors.CodeOf(err)]; ok {
		return NewErrorWithSuggestion(err, suggestion)
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NewErrorWithSuggestion(err,
			"Is the backend running? Set SCHOOLCTL_API_URL or --api-url")
	}
	if strings.Contains(errMsg, "permission denied") {
		return NewErrorWithSuggestion(err,
			"Check permissions of the schoolctl directory (~/.schoolctl)")
	}
	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}
