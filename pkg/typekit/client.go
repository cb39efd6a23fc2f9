package typekit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kitinfo/kitinfo/pkg/engine"
)

const (
	// DefaultBaseURL is the Typekit JSON API root.
	DefaultBaseURL = "https://typekit.com/api/v1/json/"

	// TokenHeader carries the API token on every request.
	TokenHeader = "X-Typekit-Token"

	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultRetryMax is the number of retries for idempotent requests.
	DefaultRetryMax = 2

	tracerName = "github.com/kitinfo/kitinfo/pkg/typekit"
)

// Names of gateway calls as reported to the CallObserver.
const (
	CallList   = "list"
	CallGet    = "get"
	CallSave   = "save"
	CallDelete = "delete"
)

// CallObserver is notified after every gateway call.
type CallObserver interface {
	ObserveGatewayCall(call string, duration time.Duration, err error)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL.
	BaseURL string

	// Token is the API token sent in TokenHeader.
	Token string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// RetryMax is the number of retries for GET requests. Writes are never retried.
	RetryMax int

	// Logger receives request and retry logs.
	Logger zerolog.Logger

	// Observer is notified after every call. Optional.
	Observer CallObserver

	// HTTPClient is copied and used as the underlying HTTP client. Optional.
	HTTPClient *http.Client

	// TracerProvider creates the client's tracer. Defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Client is the Typekit implementation of engine.Gateway.
type Client struct {
	baseURL  *url.URL
	token    string
	http     *retryablehttp.Client
	logger   zerolog.Logger
	observer CallObserver
	tracer   trace.Tracer
}

var _ engine.Gateway = (*Client)(nil)

// New creates a Typekit client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	logger := cfg.Logger.With().Str("component", "typekit").Logger()

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	rc := retryablehttp.NewClient()
	if cfg.HTTPClient != nil {
		hc := *cfg.HTTPClient
		rc.HTTPClient = &hc
	}
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.CheckRetry = retryIdempotent
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger: logger}

	return &Client{
		baseURL:  base,
		token:    cfg.Token,
		http:     rc,
		logger:   logger,
		observer: cfg.Observer,
		tracer:   tp.Tracer(tracerName),
	}, nil
}

type methodKey struct{}

// retryIdempotent retries GET requests with the default policy. Writes are
// attempted once since a retried POST could create a second kit.
func retryIdempotent(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if method, _ := ctx.Value(methodKey{}).(string); method != http.MethodGet {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// listResponse is the body of GET kits.
type listResponse struct {
	Kits []struct {
		ID   string `json:"id"`
		Link string `json:"link"`
	} `json:"kits"`
}

// kitResponse is the body of GET kits/:id and POST kits[/:id].
type kitResponse struct {
	Kit *engine.Kit `json:"kit"`
}

// deleteResponse is the body of DELETE kits/:id.
type deleteResponse struct {
	OK *bool `json:"ok"`
}

// List returns the IDs of every kit visible to the token.
func (c *Client) List(ctx context.Context) (ids []engine.KitID, err error) {
	ctx, done := c.observe(ctx, CallList, "")
	defer func() { done(err) }()

	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "kits", nil, "kits", &resp); err != nil {
		return nil, err
	}

	ids = make([]engine.KitID, 0, len(resp.Kits))
	for _, k := range resp.Kits {
		ids = append(ids, engine.KitID(k.ID))
	}
	return ids, nil
}

// Get returns the kit with the given ID.
func (c *Client) Get(ctx context.Context, id engine.KitID) (kit *engine.Kit, err error) {
	ctx, done := c.observe(ctx, CallGet, id)
	defer func() { done(err) }()

	var resp kitResponse
	if err := c.do(ctx, http.MethodGet, kitPath(id), nil, "kit", &resp); err != nil {
		return nil, withResource(err, id)
	}
	return resp.Kit, nil
}

// Save creates a kit when id is nil and updates kit id otherwise.
func (c *Client) Save(ctx context.Context, fields engine.Fields, id *engine.KitID) (kit *engine.Kit, err error) {
	path := "kits"
	var resource engine.KitID
	if id != nil {
		resource = *id
		path = kitPath(*id)
	}

	ctx, done := c.observe(ctx, CallSave, resource)
	defer func() { done(err) }()

	if _, present := fields[engine.ReservedIDKey]; present {
		return nil, engine.NewInternalError("fields still carry the reserved id key", nil)
	}

	var resp kitResponse
	if err := c.do(ctx, http.MethodPost, path, encodeFields(fields), "kit", &resp); err != nil {
		return nil, withResource(err, resource)
	}
	return resp.Kit, nil
}

// Delete removes the kit with the given ID.
func (c *Client) Delete(ctx context.Context, id engine.KitID) (err error) {
	ctx, done := c.observe(ctx, CallDelete, id)
	defer func() { done(err) }()

	var resp deleteResponse
	if err := c.do(ctx, http.MethodDelete, kitPath(id), nil, "ok", &resp); err != nil {
		return withResource(err, id)
	}
	return nil
}

// do sends a request and decodes the body into out. field is the top-level
// key a successful response must carry.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, field string, out interface{}) error {
	ref, err := url.Parse(path)
	if err != nil {
		return engine.NewInternalError("failed to build request path", err)
	}
	endpoint := c.baseURL.ResolveReference(ref)

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := retryablehttp.NewRequestWithContext(context.WithValue(ctx, methodKey{}, method), method, endpoint.String(), body)
	if err != nil {
		return engine.NewInternalError("failed to build request", err)
	}
	req.Header.Set(TokenHeader, c.token)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return engine.NewRemoteError(0, "Request failed: "+transportMessage(err), err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Typekit request")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.NewRemoteError(resp.StatusCode, "Failed to read response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return engine.NewAuthenticationError(statusMessage(resp.StatusCode, data), nil)
	}
	if resp.StatusCode >= 300 {
		return engine.NewRemoteError(resp.StatusCode, statusMessage(resp.StatusCode, data), nil)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return engine.NewContractError("response is not a JSON object", err).
			WithCode(engine.ErrCodeMalformed)
	}
	if v, ok := raw[field]; !ok || string(v) == "null" {
		return engine.NewContractError(fmt.Sprintf("response is missing the %q field", field), nil).
			WithDetail("field", field)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return engine.NewContractError(fmt.Sprintf("response field %q is malformed", field), err).
			WithCode(engine.ErrCodeMalformed)
	}
	return nil
}

// observe starts a span for a call and returns a function that ends it.
func (c *Client) observe(ctx context.Context, call string, id engine.KitID) (context.Context, func(error)) {
	ctx, span := c.tracer.Start(ctx, "typekit."+call,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("typekit.call", call)))
	if id != "" {
		span.SetAttributes(attribute.String("typekit.kit_id", string(id)))
	}

	start := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, engine.Message(err))
		}
		span.End()

		if c.observer != nil {
			c.observer.ObserveGatewayCall(call, time.Since(start), err)
		}
	}
}

// errorBody is the error document returned with non-2xx responses.
type errorBody struct {
	Errors []string `json:"errors"`
}

// statusMessage renders "<code> <text>", followed by the API's error strings when present.
func statusMessage(status int, body []byte) string {
	msg := fmt.Sprintf("%d %s", status, http.StatusText(status))

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Errors) > 0 {
		msg += ": " + strings.Join(eb.Errors, "; ")
	}
	return msg
}

func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// encodeFields converts fields into the form body the API expects.
// Multi-valued fields are joined with commas.
func encodeFields(fields engine.Fields) url.Values {
	form := url.Values{}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if len(fields[k]) == 0 {
			continue
		}
		form.Set(k, strings.Join(fields[k], ","))
	}
	return form
}

// kitPath returns the escaped path of a kit, relative to the API root.
func kitPath(id engine.KitID) string {
	return "kits/" + url.PathEscape(string(id))
}

func withResource(err error, id engine.KitID) error {
	var engineErr *engine.EngineError
	if id != "" && errors.As(err, &engineErr) && engineErr.Resource == "" {
		engineErr.WithResource(string(id))
	}
	return err
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
