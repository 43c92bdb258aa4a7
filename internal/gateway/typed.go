package gateway

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

// GetJSON issues a GET and decodes the envelope into T.
func GetJSON[T any](ctx context.Context, c *Client, endpoint string, opts Options) (*Envelope[T], error) {
	opts.Method = http.MethodGet
	return DoJSON[T](ctx, c, endpoint, opts)
}

// SendJSON issues a request with method and body and decodes the envelope
// into T.
func SendJSON[T any](ctx context.Context, c *Client, method, endpoint string, body any, opts Options) (*Envelope[T], error) {
	opts.Method = method
	opts.Body = body
	return DoJSON[T](ctx, c, endpoint, opts)
}

// DoJSON performs a JSON request and decodes its envelope. An empty response
// yields a zero envelope with Success set. Envelope and validation failures
// are notified here since the gateway only saw a 2xx.
func DoJSON[T any](ctx context.Context, c *Client, endpoint string, opts Options) (*Envelope[T], error) {
	result, err := c.Request(ctx, endpoint, opts, JSON)
	if err != nil {
		return nil, err
	}
	if result.Empty {
		return &Envelope[T]{Success: true}, nil
	}

	env, err := DecodeEnvelope[T](result.JSON, c.validate)
	if err != nil {
		c.logger.DebugContext(ctx, "envelope rejected", "endpoint", endpoint, "error", err.Error())
		c.notifier.Error(failureMessage(err))
		return nil, err
	}
	return env, nil
}

func failureMessage(err error) string {
	var envErr *EnvelopeError
	if stderrors.As(err, &envErr) {
		return envErr.Error()
	}
	var valErr *ValidationError
	if stderrors.As(err, &valErr) {
		return "Received an invalid response from the server"
	}
	if errors.HasCode(err, errors.ErrCodeGatewayDecode) {
		return "Received an invalid response from the server"
	}
	return err.Error()
}
