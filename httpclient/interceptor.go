package httpclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/devmarvs/schoolgate/apperr"
	"github.com/devmarvs/schoolgate/endpoint"
)

// RequestIDHeader carries the per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// Request is the outgoing call as seen by interceptors. Before hooks may
// change Header and Body; the auth decision has already been made.
type Request struct {
	Operation  string
	Descriptor endpoint.Descriptor
	Method     string
	URL        string
	Header     http.Header
	Body       []byte

	ctx context.Context
}

// Context returns the request context.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// SetContext replaces the request context, e.g. to carry a span.
func (r *Request) SetContext(ctx context.Context) {
	if ctx != nil {
		r.ctx = ctx
	}
}

// Response is the transport result as seen by After hooks. Err is set when
// the transport failed and no status was received.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Duration time.Duration
	Err      error
}

// Interceptor observes or mutates calls around the transport.
type Interceptor struct {
	Name   string
	Before func(req *Request) error
	After  func(req *Request, resp *Response)
}

// Chain runs interceptors in registration order.
type Chain []Interceptor

func (c Chain) before(req *Request) error {
	for _, interceptor := range c {
		if interceptor.Before == nil {
			continue
		}
		if err := interceptor.Before(req); err != nil {
			return err
		}
	}
	return nil
}

func (c Chain) after(req *Request, resp *Response) {
	for _, interceptor := range c {
		if interceptor.After != nil {
			interceptor.After(req, resp)
		}
	}
}

// RequestID sets X-Request-ID to a fresh UUID unless already present.
func RequestID() Interceptor {
	return Interceptor{
		Name: "request-id",
		Before: func(req *Request) error {
			if req.Header.Get(RequestIDHeader) == "" {
				req.Header.Set(RequestIDHeader, uuid.NewString())
			}
			return nil
		},
	}
}

// Logging logs every call result through logger.
func Logging(logger *slog.Logger) Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return Interceptor{
		Name: "logging",
		Before: func(req *Request) error {
			logger.Debug("request started",
				slog.String("operation", req.Operation),
				slog.String("method", req.Method),
				slog.String("url", req.URL),
			)
			return nil
		},
		After: func(req *Request, resp *Response) {
			attrs := []any{
				slog.String("operation", req.Operation),
				slog.String("method", req.Method),
				slog.String("url", req.URL),
				slog.Int("status", resp.Status),
				slog.Duration("duration", resp.Duration),
			}
			if id := req.Header.Get(RequestIDHeader); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			switch {
			case resp.Err != nil:
				logger.Warn("request failed", append(attrs, slog.String("error", resp.Err.Error()))...)
			case resp.Status >= http.StatusBadRequest:
				logger.Warn("request rejected", attrs...)
			default:
				logger.Info("request completed", attrs...)
			}
		},
	}
}

// RateLimit blocks each call until limiter admits it.
func RateLimit(limiter *rate.Limiter) Interceptor {
	return Interceptor{
		Name: "rate-limit",
		Before: func(req *Request) error {
			if limiter == nil {
				return nil
			}
			ctx := req.Context()
			if err := limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return apperr.New(apperr.KindTimeout, 0, "rate limit wait exceeds deadline", err)
			}
			return nil
		},
	}
}
