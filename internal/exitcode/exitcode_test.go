package exitcode

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error returns success", nil, Success},
		{"session missing", errors.NewSessionMissingError(), AuthError},
		{"role not granted", errors.NewRoleNotGrantedError("BURSAR"), AuthError},
		{"session not ready", errors.NewSessionNotReadyError("TEACHER"), SessionNotReady},
		{"wrapped role not chosen", fmt.Errorf("list: %w", errors.NewRoleNotChosenError()), SessionNotReady},
		{"network code", errors.Wrap(errors.ErrCodeGatewayNetwork, "dial", stderrors.New("x")), NetworkError},
		{"validation code", errors.New(errors.ErrCodeGatewayValidation, "bad payload"), ValidationError},
		{"request rejected", errors.New(errors.ErrCodeGatewayRequest, "Class is full"), RequestRejected},
		{"unauthorized sentinel text", stderrors.New("Unauthorized"), AuthError},
		{"connection refused", stderrors.New("dial tcp: connection refused"), NetworkError},
		{"client timeout", stderrors.New("context deadline exceeded (Client.Timeout exceeded)"), NetworkError},
		{"host unreachable", stderrors.New("network is unreachable"), NetworkError},
		{"unknown command", stderrors.New(`unknown command "foo" for "schoolctl"`), UsageError},
		{"required flag", stderrors.New(`required flag(s) "role" not set`), UsageError},
		{"generic error", stderrors.New("something went wrong"), GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{Success, "Success"},
		{AuthError, "Authentication error"},
		{SessionNotReady, "Role or academic year not selected"},
		{ValidationError, "Response failed validation"},
		{Interrupted, "Interrupted"},
		{99, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := GetExitCodeDescription(tt.code); got != tt.want {
				t.Errorf("GetExitCodeDescription(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}
