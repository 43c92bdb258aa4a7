package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Gateway errors (GATEWAY-001 to GATEWAY-099)
	ErrCodeGatewayRequest     ErrorCode = "GATEWAY-001"
	ErrCodeGatewayNetwork     ErrorCode = "GATEWAY-002"
	ErrCodeGatewayDecode      ErrorCode = "GATEWAY-003"
	ErrCodeGatewayValidation  ErrorCode = "GATEWAY-004"
	ErrCodeGatewayEnvelope    ErrorCode = "GATEWAY-005"
	ErrCodeGatewayContract    ErrorCode = "GATEWAY-006"
	ErrCodeGatewayBodyEncode  ErrorCode = "GATEWAY-007"
	ErrCodeGatewayUnsupported ErrorCode = "GATEWAY-008"

	// Session errors (SESSION-001 to SESSION-099)
	ErrCodeSessionMissing  ErrorCode = "SESSION-001"
	ErrCodeSessionInvalid  ErrorCode = "SESSION-002"
	ErrCodeSessionLogin    ErrorCode = "SESSION-003"
	ErrCodeSessionRefresh  ErrorCode = "SESSION-004"
	ErrCodeSessionNotReady ErrorCode = "SESSION-005"

	// Role errors (ROLE-001 to ROLE-099)
	ErrCodeRoleNotGranted ErrorCode = "ROLE-001"
	ErrCodeRoleNotChosen  ErrorCode = "ROLE-002"
	ErrCodeRoleUnknown    ErrorCode = "ROLE-003"

	// Academic year errors (YEAR-001 to YEAR-099)
	ErrCodeYearNotRequired ErrorCode = "YEAR-001"
	ErrCodeYearUnavailable ErrorCode = "YEAR-002"
	ErrCodeYearNoneOffered ErrorCode = "YEAR-003"

	// Storage errors (STORAGE-001 to STORAGE-099)
	ErrCodeStorageRead    ErrorCode = "STORAGE-001"
	ErrCodeStorageWrite   ErrorCode = "STORAGE-002"
	ErrCodeStorageCorrupt ErrorCode = "STORAGE-003"
	ErrCodeStorageCrypto  ErrorCode = "STORAGE-004"
	ErrCodeStorageDriver  ErrorCode = "STORAGE-005"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigRead    ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid ErrorCode = "CONFIG-002"
	ErrCodeConfigWrite   ErrorCode = "CONFIG-003"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
)

// Error represents an enhanced error with code, suggestions, and documentation
type Error struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new Error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *Error) WithDocs(url string) *Error {
	e.DocsURL = url
	return e
}

// HasCode reports whether err, or any error it wraps, is an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var coded *Error
	for err != nil {
		if !stderrors.As(err, &coded) {
			return false
		}
		if coded.Code == code {
			return true
		}
		err = coded.Cause
	}
	return false
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Common error constructors for frequently used errors

// NewRoleNotGrantedError creates an error for a role the user does not hold
func NewRoleNotGrantedError(role string) *Error {
	return New(ErrCodeRoleNotGranted, fmt.Sprintf("role not granted to this user: %s", role)).
		WithSuggestion("Run 'schoolctl role list' to see the roles you hold")
}

// NewRoleNotChosenError creates an error for operations that need a selected role
func NewRoleNotChosenError() *Error {
	return New(ErrCodeRoleNotChosen, "no role selected").
		WithSuggestion("Run 'schoolctl role select' to choose a role")
}

// NewSessionMissingError creates an error for operations that need a logged-in user
func NewSessionMissingError() *Error {
	return New(ErrCodeSessionMissing, "not logged in").
		WithSuggestion("Run 'schoolctl auth login' to authenticate")
}

// NewYearUnavailableError creates an error for an academic year outside the offered list
func NewYearUnavailableError(year string) *Error {
	return New(ErrCodeYearUnavailable, fmt.Sprintf("academic year not available for the selected role: %s", year)).
		WithSuggestion("Run 'schoolctl year list' to see the academic years you can access")
}

// NewSessionNotReadyError creates an error for a year-scoped role without a selected year
func NewSessionNotReadyError(role string) *Error {
	return New(ErrCodeSessionNotReady, fmt.Sprintf("role %s requires an academic year", role)).
		WithSuggestion("Run 'schoolctl year select' to choose an academic year")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *Error {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
