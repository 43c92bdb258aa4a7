// Package gateway is the single choke point for backend calls: it injects the
// bearer token, encodes bodies, normalises JSON/blob/text responses, turns a
// 401 into a full session reset and reports every other failure once.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/log"
	"github.com/felixgeelhaar/schoolctl/internal/navigate"
	"github.com/felixgeelhaar/schoolctl/internal/notify"
	"github.com/felixgeelhaar/schoolctl/internal/storage"
	"github.com/felixgeelhaar/schoolctl/internal/version"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:5000/api"

// ResponseType selects how a 2xx body is parsed.
type ResponseType int

const (
	// JSON keeps the body as raw JSON for envelope decoding (default).
	JSON ResponseType = iota
	// Blob keeps the body as binary data with its content type.
	Blob
	// Text returns the body as a string.
	Text
	// ArrayBuffer returns the raw bytes.
	ArrayBuffer
)

// String returns the response type name.
func (t ResponseType) String() string {
	switch t {
	case Blob:
		return "blob"
	case Text:
		return "text"
	case ArrayBuffer:
		return "arrayBuffer"
	default:
		return "json"
	}
}

// ParseResponseType parses a response type name.
func ParseResponseType(s string) (ResponseType, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return JSON, nil
	case "blob":
		return Blob, nil
	case "text":
		return Text, nil
	case "arraybuffer", "bytes":
		return ArrayBuffer, nil
	default:
		return JSON, fmt.Errorf("unknown response type %q (supported: json, blob, text, arrayBuffer)", s)
	}
}

// Options are the HTTP options of a request.
type Options struct {
	Method string
	Header http.Header
	Query  url.Values
	// Body is encoded as JSON unless it is FormData, *FormData, []byte,
	// string or an io.Reader, which pass through unchanged.
	Body any
}

// BlobData is a binary response.
type BlobData struct {
	ContentType string
	Filename    string
	Data        []byte
}

// Size returns the number of bytes.
func (b *BlobData) Size() int {
	return len(b.Data)
}

// Result is a normalised response. Exactly one payload field is set unless
// Empty is true.
type Result struct {
	Status int
	Header http.Header
	Empty  bool

	JSON  json.RawMessage
	Blob  *BlobData
	Text  string
	Bytes []byte
}

// Client is the Request Gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      storage.Storage
	notifier   notify.Notifier
	navigator  navigate.Navigator
	logger     *log.Logger
	validate   *validator.Validate
	contract   *Contract
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithContract enables OpenAPI response validation.
func WithContract(contract *Contract) Option {
	return func(c *Client) {
		c.contract = contract
	}
}

// New creates a gateway client. An empty baseURL falls back to DefaultBaseURL.
func New(baseURL string, store storage.Storage, notifier notify.Notifier, navigator navigate.Navigator, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		store:     store,
		notifier:  notifier,
		navigator: navigator,
		logger:    log.DefaultLogger(),
		validate:  NewValidator(),
		userAgent: version.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Validator returns the payload validator.
func (c *Client) Validator() *validator.Validate {
	return c.validate
}

// Notifier returns the notifier used for failures.
func (c *Client) Notifier() notify.Notifier {
	return c.notifier
}

// Token returns the persisted bearer token, or "" when there is none.
func (c *Client) Token(ctx context.Context) string {
	token, ok, err := c.store.Get(ctx, storage.KeyToken)
	if err != nil || !ok {
		return ""
	}
	return token
}

// ResolveURL resolves endpoint against the base URL. Absolute URLs are
// returned verbatim.
func (c *Client) ResolveURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, endpoint string, opts Options, rt ResponseType) (*Result, error) {
	opts.Method = http.MethodGet
	return c.Request(ctx, endpoint, opts, rt)
}

// Post issues a POST request with body.
func (c *Client) Post(ctx context.Context, endpoint string, body any, opts Options, rt ResponseType) (*Result, error) {
	opts.Method = http.MethodPost
	opts.Body = body
	return c.Request(ctx, endpoint, opts, rt)
}

// Put issues a PUT request with body.
func (c *Client) Put(ctx context.Context, endpoint string, body any, opts Options, rt ResponseType) (*Result, error) {
	opts.Method = http.MethodPut
	opts.Body = body
	return c.Request(ctx, endpoint, opts, rt)
}

// Patch issues a PATCH request with body.
func (c *Client) Patch(ctx context.Context, endpoint string, body any, opts Options, rt ResponseType) (*Result, error) {
	opts.Method = http.MethodPatch
	opts.Body = body
	return c.Request(ctx, endpoint, opts, rt)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, opts Options, rt ResponseType) (*Result, error) {
	opts.Method = http.MethodDelete
	return c.Request(ctx, endpoint, opts, rt)
}

// Request performs one call. It never retries.
func (c *Client) Request(ctx context.Context, endpoint string, opts Options, rt ResponseType) (*Result, error) {
	req, err := c.newRequest(ctx, endpoint, opts, rt)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.notifier.Error(fmt.Sprintf("Network error: %v", unwrapURLError(err)))
		return nil, errors.Wrap(errors.ErrCodeGatewayNetwork, "request could not be sent", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.notifier.Error(fmt.Sprintf("Network error: %v", err))
		return nil, errors.Wrap(errors.ErrCodeGatewayNetwork, "failed to read response body", err)
	}

	c.logger.DebugContext(ctx, "gateway request",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
		"request_id", req.Header.Get("X-Request-ID"),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, c.handleUnauthorized(ctx, body)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		httpErr := &HTTPError{
			Status:  resp.StatusCode,
			Message: ExtractErrorMessage(resp.StatusCode, body),
			Body:    body,
		}
		c.notifier.Error(httpErr.Message)
		return nil, httpErr
	case resp.StatusCode == http.StatusNoContent || len(body) == 0:
		return &Result{Status: resp.StatusCode, Header: resp.Header, Empty: true}, nil
	}

	result := &Result{Status: resp.StatusCode, Header: resp.Header}
	switch rt {
	case Blob:
		result.Blob = &BlobData{
			ContentType: resp.Header.Get("Content-Type"),
			Filename:    filenameFromDisposition(resp.Header.Get("Content-Disposition")),
			Data:        body,
		}
	case Text:
		result.Text = string(body)
	case ArrayBuffer:
		result.Bytes = body
	default:
		if !json.Valid(body) {
			c.notifier.Error("Received an invalid response from the server")
			return nil, errors.New(errors.ErrCodeGatewayDecode,
				fmt.Sprintf("response from %s %s is not valid JSON", req.Method, req.URL.Path))
		}
		if c.contract != nil {
			if err := c.contract.ValidateResponse(ctx, req, resp.StatusCode, resp.Header, body); err != nil {
				c.logger.WarnContext(ctx, "response violates API contract", "url", req.URL.String(), "error", err.Error())
				c.notifier.Error("Received an invalid response from the server")
				return nil, err
			}
		}
		result.JSON = body
	}

	return result, nil
}

func (c *Client) newRequest(ctx context.Context, endpoint string, opts Options, rt ResponseType) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.ResolveURL(endpoint)
	if len(opts.Query) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeGatewayRequest, "invalid endpoint", err)
		}
		q := u.Query()
		for key, values := range opts.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	header := http.Header{}
	for key, values := range opts.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}

	body, contentType, err := encodeBody(opts.Body, header.Get("Content-Type") != "")
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeGatewayRequest, "failed to create request", err)
	}
	req.Header = header

	if req.Header.Get("Accept") == "" {
		switch rt {
		case JSON:
			req.Header.Set("Accept", "application/json")
		default:
			req.Header.Set("Accept", "*/*")
		}
	}
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
	if token := c.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// encodeBody returns the request body and the content type to set. Plain
// values are JSON encoded; explicitContentType leaves the header untouched.
func encodeBody(body any, explicitContentType bool) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case FormData:
		return b.encode()
	case *FormData:
		return b.encode()
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return strings.NewReader(b), "", nil
	case io.Reader:
		return b, "", nil
	}

	data, err := marshalJSON(body)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeGatewayBodyEncode, "failed to encode request body", err)
	}
	if explicitContentType {
		return bytes.NewReader(data), "", nil
	}
	return bytes.NewReader(data), "application/json", nil
}

// marshalJSON encodes v like JSON.stringify: no HTML escaping of <, > and &,
// no trailing newline.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// handleUnauthorized runs the session-expiry side effects in order: clear
// persisted session, notify, navigate to the entry point with a full reset.
func (c *Client) handleUnauthorized(ctx context.Context, body []byte) error {
	if err := storage.ClearSession(context.WithoutCancel(ctx), c.store); err != nil {
		c.logger.WarnContext(ctx, "failed to clear session after 401", "error", err.Error())
	}

	message := DefaultSessionExpiredMessage
	if msg := jsonField(body, "message"); msg != "" {
		message = msg
	}
	c.notifier.Error(message)
	c.navigator.Reset(navigate.LoginPath)

	return ErrUnauthorized
}

// ExtractErrorMessage picks the message of a failed response: JSON message,
// then JSON error, then the raw text, then a generic status message.
func ExtractErrorMessage(status int, body []byte) string {
	if msg := jsonField(body, "message"); msg != "" {
		return msg
	}
	if msg := jsonField(body, "error"); msg != "" {
		return msg
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("Request failed with status %d", status)
}

func jsonField(body []byte, field string) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if s, ok := payload[field].(string); ok {
		return s
	}
	return ""
}

func filenameFromDisposition(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
