package gateway

import (
	stderrors "errors"
	"fmt"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

// ErrUnauthorized is returned for every 401 response after the session has
// been cleared and the user notified. Callers that see it must not notify
// again.
var ErrUnauthorized = stderrors.New("Unauthorized")

// DefaultSessionExpiredMessage is shown on 401 when the server sends no message.
const DefaultSessionExpiredMessage = "Session expired. Please log in again."

// HTTPError is returned for non-2xx responses other than 401. Its message
// is the best human-readable message the response offered.
type HTTPError struct {
	Status  int
	Message string
	Body    []byte
}

// Error returns the extracted message.
func (e *HTTPError) Error() string {
	return e.Message
}

// Unwrap exposes the coded form so exit codes and loggers can classify it.
func (e *HTTPError) Unwrap() error {
	return errors.New(errors.ErrCodeGatewayRequest, e.Message)
}

// IsUnauthorized reports whether err stems from a 401 response.
func IsUnauthorized(err error) bool {
	return stderrors.Is(err, ErrUnauthorized)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if stderrors.As(err, &httpErr) {
		return httpErr.Status
	}
	if IsUnauthorized(err) {
		return 401
	}
	return 0
}

// EnvelopeError is returned when a 2xx JSON envelope reports success=false.
type EnvelopeError struct {
	Message string
}

// Error returns the envelope message.
func (e *EnvelopeError) Error() string {
	if e.Message == "" {
		return "request was not successful"
	}
	return e.Message
}

// Unwrap exposes the coded form.
func (e *EnvelopeError) Unwrap() error {
	return errors.New(errors.ErrCodeGatewayEnvelope, e.Error())
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string
	Rule  string
}

// ValidationError is returned when a payload does not match its schema.
type ValidationError struct {
	Type   string
	Fields []FieldError
}

// Error lists the failing fields.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s payload", e.Type)
	for i, f := range e.Fields {
		if i == 0 {
			msg += ": "
		} else {
			msg += ", "
		}
		msg += fmt.Sprintf("%s failed %q", f.Field, f.Rule)
	}
	return msg
}

// Unwrap exposes the coded form.
func (e *ValidationError) Unwrap() error {
	return errors.New(errors.ErrCodeGatewayValidation, e.Error())
}

// Notified reports whether the gateway already showed a notification for err.
// Callers use it to avoid reporting the same failure twice.
func Notified(err error) bool {
	if err == nil {
		return false
	}
	if IsUnauthorized(err) {
		return true
	}
	var httpErr *HTTPError
	var envErr *EnvelopeError
	var valErr *ValidationError
	if stderrors.As(err, &httpErr) || stderrors.As(err, &envErr) || stderrors.As(err, &valErr) {
		return true
	}
	return errors.HasCode(err, errors.ErrCodeGatewayNetwork) ||
		errors.HasCode(err, errors.ErrCodeGatewayDecode) ||
		errors.HasCode(err, errors.ErrCodeGatewayContract)
}
