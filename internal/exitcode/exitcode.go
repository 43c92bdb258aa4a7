package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// RequestRejected indicates the backend answered with a non-2xx status
	RequestRejected = 3

	// SessionNotReady indicates a role or academic year still has to be chosen
	SessionNotReady = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// ValidationError indicates a response that failed schema validation
	ValidationError = 7

	// Interrupted indicates the user cancelled the operation
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Coded errors are matched first; anything else falls back to message heuristics.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch {
	case errors.HasCode(err, errors.ErrCodeSessionMissing),
		errors.HasCode(err, errors.ErrCodeSessionInvalid),
		errors.HasCode(err, errors.ErrCodeSessionLogin),
		errors.HasCode(err, errors.ErrCodeRoleNotGranted):
		return AuthError
	case errors.HasCode(err, errors.ErrCodeSessionNotReady),
		errors.HasCode(err, errors.ErrCodeRoleNotChosen),
		errors.HasCode(err, errors.ErrCodeYearNoneOffered):
		return SessionNotReady
	case errors.HasCode(err, errors.ErrCodeGatewayNetwork):
		return NetworkError
	case errors.HasCode(err, errors.ErrCodeGatewayValidation),
		errors.HasCode(err, errors.ErrCodeGatewayContract):
		return ValidationError
	case errors.HasCode(err, errors.ErrCodeGatewayRequest):
		return RequestRejected
	}

	errMsg := strings.ToLower(err.Error())

	// Authentication errors
	if strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "session expired") {
		return AuthError
	}

	// Network errors
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}

	// Usage errors
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts ") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case RequestRejected:
		return "Request rejected by the server"
	case SessionNotReady:
		return "Role or academic year not selected"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case ValidationError:
		return "Response failed validation"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
