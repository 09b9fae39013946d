package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/form"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/runner"
)

// RequestIDHeader correlates one outbound call in backend logs.
const RequestIDHeader = "X-Request-ID"

// Sender performs exactly one logical request to an endpoint.
type Sender interface {
	Send(ctx context.Context, endpoint EndpointID, payload form.Payload) (Response, error)
}

// Response is a successful (2xx) reply.
type Response struct {
	Endpoint    EndpointID
	StatusCode  int
	ContentType string
	Body        []byte
	RequestID   string
}

// Client posts payloads to the automation backend. It never retries
// writes; read-only fetches retry only when configured to.
type Client struct {
	http       *http.Client
	endpoints  Endpoints
	logger     logging.Logger
	multipart  bool
	fetchRetry int
	backoff    runner.RetryStrategy
	timeout    time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		c.logger = logging.Normalize(l)
	}
}

// WithMultipartBatches sends batched submissions holding binaries as
// multipart/form-data instead of inline base64.
func WithMultipartBatches(enabled bool) Option {
	return func(c *Client) {
		c.multipart = enabled
	}
}

// WithFetchRetries retries read-only endpoints on network errors and 5xx.
func WithFetchRetries(retries int, backoff runner.RetryStrategy) Option {
	return func(c *Client) {
		c.fetchRetry = retries
		if backoff != nil {
			c.backoff = backoff
		}
	}
}

// WithTimeout bounds each call, zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func New(endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{},
		endpoints: endpoints,
		logger:    logging.Nop{},
		backoff:   runner.ExponentialBackoffStrategy{Base: 200 * time.Millisecond, Factor: 2, Max: 2 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// SendAction resolves the endpoint from the payload action.
func (c *Client) SendAction(ctx context.Context, payload form.Payload) (Response, error) {
	endpoint, ok := EndpointFor(payload.Action)
	if !ok {
		return Response{}, monitoring.InvalidValue("action", fmt.Sprintf("no endpoint for %q", payload.Action))
	}
	return c.Send(ctx, endpoint, payload)
}

func (c *Client) Send(ctx context.Context, endpoint EndpointID, payload form.Payload) (Response, error) {
	retries := 0
	if endpoint.ReadOnly() {
		retries = c.fetchRetry
	}
	h := runner.NewHandler(
		runner.WithName(string(endpoint)),
		runner.WithLogger(c.logger),
		runner.WithTimeout(c.timeout),
		runner.WithMaxRetries(retries),
		runner.WithRetryStrategy(runner.RetryIf{Strategy: c.backoff, Retryable: Retryable}),
	)
	return runner.RunQuery(ctx, h, func(ctx context.Context) (Response, error) {
		return c.post(ctx, endpoint, payload)
	})
}

func (c *Client) post(ctx context.Context, endpoint EndpointID, payload form.Payload) (Response, error) {
	target, err := c.endpoints.URL(endpoint)
	if err != nil {
		return Response{}, monitoring.NetworkFailure(string(endpoint), err)
	}
	body, contentType, err := c.encode(endpoint, payload)
	if err != nil {
		return Response{}, monitoring.InvalidValue("payload", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return Response{}, monitoring.NetworkFailure(string(endpoint), err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	logger := logging.WithFields(c.logger.WithContext(ctx), map[string]any{
		"endpoint":   string(endpoint),
		"request_id": requestID,
	})
	logger.Debug("posting %s payload (%s)", contentType, humanize.Bytes(uint64(len(body))))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error("request failed: %v", err)
		return Response{}, monitoring.NetworkFailure(string(endpoint), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("reading response failed: %v", err)
		return Response{}, monitoring.NetworkFailure(string(endpoint), err)
	}
	logger.Info("response status=%d size=%s in %s", resp.StatusCode, humanize.Bytes(uint64(len(respBody))), time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, monitoring.HTTPStatus(string(endpoint), resp.StatusCode)
	}
	if endpoint.ExpectsJSON() && !json.Valid(bytes.TrimSpace(respBody)) {
		return Response{}, monitoring.InvalidResponse(string(endpoint), fmt.Errorf("expected JSON, got %q", truncate(respBody, 64)))
	}
	return Response{
		Endpoint:    endpoint,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
		RequestID:   requestID,
	}, nil
}

func (c *Client) encode(endpoint EndpointID, payload form.Payload) ([]byte, string, error) {
	if batch, ok := payload.Body.(form.BatchBody); ok && c.multipart && len(payload.Files) > 0 && endpoint == ProcessSubmission {
		return encodeMultipart(batch, payload.Files)
	}
	data, err := json.Marshal(payload.Body)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

// encodeMultipart sends identification and readings as JSON parts and every
// binary as a file part named after its reading key. Binary readings keep
// only their filename in the JSON part.
func encodeMultipart(batch form.BatchBody, files []form.File) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	readings := make(map[string]any, len(batch.Readings))
	for k, v := range batch.Readings {
		readings[k] = v
	}
	for _, f := range files {
		readings[f.Field] = map[string]string{"filename": f.Filename}
	}

	if err := writeJSONPart(w, "identification", batch.Identification); err != nil {
		return nil, "", err
	}
	if err := writeJSONPart(w, "readings", readings); err != nil {
		return nil, "", err
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(f.Field), quoteEscaper.Replace(f.Filename)))
		mediaType := f.MediaType
		if mediaType == "" {
			mediaType = "application/octet-stream"
		}
		h.Set("Content-Type", mediaType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeJSONPart(w *multipart.Writer, name string, v any) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, name))
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	return json.NewEncoder(part).Encode(v)
}

// Retryable accepts network failures and 5xx answers.
func Retryable(err error) bool {
	switch monitoring.Code(err) {
	case monitoring.ErrCodeNetwork:
		return true
	case monitoring.ErrCodeHTTPStatus:
		return monitoring.StatusCode(err) >= 500
	}
	return false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
