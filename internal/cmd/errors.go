package cmd

import (
	stderrors "errors"
	"strings"

	"github.com/felixgeelhaar/schoolctl/internal/gateway"
)

// ErrorWithSuggestion wraps an error with actionable recovery suggestions
type ErrorWithSuggestion struct {
	Message     string
	Suggestions []string
	err         error
}

func (e *ErrorWithSuggestion) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}

	if e.err != nil {
		b.WriteString("\n\nDetails: ")
		b.WriteString(e.err.Error())
	}

	return b.String()
}

func (e *ErrorWithSuggestion) Unwrap() error {
	return e.err
}

// NewErrorWithSuggestions creates an error with recovery suggestions
func NewErrorWithSuggestions(msg string, err error, suggestions ...string) error {
	return &ErrorWithSuggestion{
		Message:     msg,
		Suggestions: suggestions,
		err:         err,
	}
}

// usageError reports bad flags or arguments; its message starts with
// "invalid flag" so the exit code maps to a usage error.
func usageError(msg string, suggestions ...string) error {
	return NewErrorWithSuggestions("invalid flag: "+msg, nil, suggestions...)
}

// CredentialsRequiredError is returned when login cannot prompt.
func CredentialsRequiredError() error {
	return usageError("--id and --password are required when not running in a terminal",
		"Pass --id <email|matricule> --password-stdin and pipe the password",
		"Run in a terminal to get the login form",
	)
}

// ReportedError marks an error the user has already been shown through a
// notification. main still uses it for the exit code but does not print it.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string { return e.Err.Error() }

func (e *ReportedError) Unwrap() error { return e.Err }

// reported wraps err when the gateway already notified it.
func reported(err error) error {
	if err == nil {
		return nil
	}
	var already *ReportedError
	if stderrors.As(err, &already) {
		return err
	}
	if gateway.Notified(err) {
		return &ReportedError{Err: err}
	}
	return err
}

// AlreadyReported reports whether err was shown to the user.
func AlreadyReported(err error) bool {
	var r *ReportedError
	return stderrors.As(err, &r)
}
