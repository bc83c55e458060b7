// Package httpclient issues school API calls: endpoint resolution, local
// authorization, interceptors, timeout, classification, retry and
// deduplication.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/devmarvs/schoolgate/apperr"
	"github.com/devmarvs/schoolgate/auth"
	"github.com/devmarvs/schoolgate/endpoint"
	"github.com/devmarvs/schoolgate/metrics"
	"github.com/devmarvs/schoolgate/session"
)

// DefaultTimeout is the per-call budget when none is configured.
const DefaultTimeout = 15 * time.Second

// Options configures a Gateway.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	Transport    http.RoundTripper
	Sessions     *session.Store
	Interceptors []Interceptor
	Logger       *slog.Logger
	Metrics      *metrics.Registry
}

// Gateway executes one logical call per Execute and returns exactly one of
// a Result or an *apperr.Error.
type Gateway struct {
	baseURL  string
	timeout  time.Duration
	client   *http.Client
	sessions *session.Store
	chain    Chain
	logger   *slog.Logger
	metrics  *metrics.Registry
}

// NewGateway builds a Gateway.
func NewGateway(options Options) *Gateway {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := options.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	sessions := options.Sessions
	if sessions == nil {
		sessions = session.NewStore(nil, session.Options{})
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{
		baseURL:  strings.TrimRight(options.BaseURL, "/"),
		timeout:  timeout,
		client:   &http.Client{Transport: transport},
		sessions: sessions,
		chain:    append(Chain(nil), options.Interceptors...),
		logger:   logger,
		metrics:  options.Metrics,
	}
}

// Use appends interceptors to the chain. It is not safe to call while
// calls are in flight.
func (g *Gateway) Use(interceptors ...Interceptor) {
	g.chain = append(g.chain, interceptors...)
}

// Sessions returns the session store the gateway reads credentials from.
func (g *Gateway) Sessions() *session.Store {
	return g.sessions
}

// Call describes one logical operation.
type Call struct {
	// Operation names the call in logs, traces and dedupe keys.
	Operation string
	Template  endpoint.Template
	Params    []any
	// Body is JSON-encoded; []byte and json.RawMessage are sent as is.
	Body any
	// Method overrides the descriptor method when set.
	Method string
	// SkipAuth suppresses the bearer credential. A role-gated endpoint
	// still requires authentication.
	SkipAuth bool
}

// Result is a successful response.
type Result struct {
	Status      int
	Header      http.Header
	ContentType string
	Raw         []byte
	// Data is the decoded JSON body, or the body as a string for non-JSON
	// content types.
	Data any
}

// Decode unmarshals the JSON body into v.
func (r *Result) Decode(v any) error {
	if r == nil || len(r.Raw) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Raw, v)
}

// Execute runs call and classifies its outcome.
func (g *Gateway) Execute(ctx context.Context, call Call) (result *Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := g.metrics.Start()
	status := 0
	defer func() {
		g.metrics.End(start, status, err)
	}()

	descriptor, err := endpoint.Resolve(call.Template, call.Params...)
	if err != nil {
		return nil, asFailure(apperr.KindConfiguration, err)
	}
	method := descriptor.Method
	if call.Method != "" {
		method = strings.ToUpper(call.Method)
	}

	snap := g.sessions.Current()
	requiresAuth := (!call.SkipAuth && descriptor.RequiresAuth()) || !descriptor.Roles.None()
	if !descriptor.Roles.None() {
		decision := auth.Authorize(descriptor.Roles, snap.Principal())
		if !decision.Allowed {
			g.logger.Debug("call denied locally", slog.String("operation", call.Operation), slog.String("reason", decision.Reason))
			if decision.Anonymous {
				return nil, apperr.New(apperr.KindAuthenticationRequired, 0, decision.Reason, decision.Err())
			}
			return nil, apperr.New(apperr.KindAuthorizationDenied, 0, decision.Reason, decision.Err())
		}
	}
	if requiresAuth && snap.Anonymous() {
		return nil, apperr.New(apperr.KindAuthenticationRequired, 0, "authentication required", auth.ErrAuthenticationRequired)
	}

	body, err := encodeBody(call.Body)
	if err != nil {
		return nil, apperr.New(apperr.KindConfiguration, 0, "encode request body", err)
	}

	req := &Request{
		Operation:  call.Operation,
		Descriptor: descriptor,
		Method:     method,
		URL:        g.baseURL + descriptor.Path,
		Header:     defaultHeaders(),
		Body:       body,
		ctx:        ctx,
	}
	if req.Operation == "" {
		req.Operation = method + " " + descriptor.Path
	}
	credential := ""
	if requiresAuth {
		credential = snap.Credential()
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	if err := g.chain.before(req); err != nil {
		failure := transportFailure(req.Context(), nil, err)
		g.chain.after(req, &Response{Err: failure})
		return nil, failure
	}

	resp := g.roundTrip(req)
	g.chain.after(req, resp)
	status = resp.Status

	if resp.Err != nil {
		return nil, resp.Err
	}
	// A 401 from an authenticated endpoint ends the live session even when
	// the caller skipped sending it. Public endpoints reject the submitted
	// input, not the session.
	rejected := credential
	if rejected == "" && descriptor.RequiresAuth() {
		rejected = snap.Credential()
	}
	return g.classify(ctx, resp, rejected)
}

func (g *Gateway) roundTrip(req *Request) *Response {
	parent := req.Context()
	ctx, cancel := context.WithTimeout(parent, g.timeout)
	defer cancel()

	started := time.Now()
	resp := &Response{}
	defer func() { resp.Duration = time.Since(started) }()

	var reader io.Reader
	if req.Body != nil {
		reader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reader)
	if err != nil {
		resp.Err = apperr.New(apperr.KindConfiguration, 0, "build request", err)
		return resp
	}
	httpReq.Header = req.Header.Clone()

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		resp.Err = transportFailure(parent, ctx, err)
		return resp
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		resp.Err = transportFailure(parent, ctx, err)
		return resp
	}
	resp.Status = httpResp.StatusCode
	resp.Header = httpResp.Header
	resp.Body = raw
	return resp
}

// classify maps resp to an outcome. credential is the session a 401 revokes;
// empty when the rejection does not concern the session.
func (g *Gateway) classify(ctx context.Context, resp *Response, credential string) (*Result, error) {
	status := resp.Status
	if status >= 200 && status < 300 {
		return decodeResult(resp)
	}

	message := serverMessage(resp.Body, status)
	switch {
	case status == http.StatusUnauthorized:
		if credential == "" {
			return nil, apperr.New(apperr.KindAuthenticationRequired, status, message, nil)
		}
		g.sessions.InvalidateIfCurrent(context.WithoutCancel(ctx), credential, "unauthorized")
		return nil, apperr.New(apperr.KindSessionExpired, status, message, nil)
	case status == http.StatusForbidden:
		return nil, apperr.New(apperr.KindAuthorizationDenied, status, message, nil)
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return nil, apperr.New(apperr.KindValidation, status, message, nil)
	default:
		return nil, apperr.New(apperr.KindServerRejected, status, message, nil)
	}
}

func decodeResult(resp *Response) (*Result, error) {
	contentType := resp.Header.Get("Content-Type")
	result := &Result{
		Status:      resp.Status,
		Header:      resp.Header,
		ContentType: contentType,
		Raw:         resp.Body,
	}
	if !isJSON(contentType) {
		result.Data = string(resp.Body)
		return result, nil
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(resp.Body, &result.Data); err != nil {
		return nil, apperr.New(apperr.KindServerRejected, resp.Status, "malformed JSON response", err)
	}
	return result, nil
}

func defaultHeaders() http.Header {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	header.Set("X-Requested-With", "XMLHttpRequest")
	header.Set("Cache-Control", "no-cache")
	return header
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// serverMessage extracts "message" or "error" from a JSON error body,
// falling back to the status text.
func serverMessage(body []byte, status int) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"message", "error"} {
			if text, ok := payload[key].(string); ok && text != "" {
				return text
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

// transportFailure classifies err from a call whose caller context is
// parent and whose timeout-bound context is bounded (nil before the clock
// starts).
func transportFailure(parent, bounded context.Context, err error) error {
	if appErr := apperr.As(err); appErr != nil {
		return appErr
	}
	if parent.Err() != nil {
		return contextFailure(parent, err)
	}
	if bounded != nil && errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return apperr.New(apperr.KindTimeout, 0, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return contextFailure(parent, err)
	}
	if errors.Is(err, ErrCircuitOpen) {
		return apperr.New(apperr.KindNetwork, 0, "circuit breaker open", err)
	}
	return apperr.New(apperr.KindNetwork, 0, "network error", err)
}

// contextFailure maps a finished caller context to Timeout or Canceled.
func contextFailure(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.New(apperr.KindTimeout, 0, "request timed out", err)
	}
	return apperr.New(apperr.KindCanceled, 0, "request canceled", err)
}

func asFailure(kind apperr.Kind, err error) error {
	if appErr := apperr.As(err); appErr != nil {
		return appErr
	}
	return apperr.New(kind, 0, err.Error(), err)
}
