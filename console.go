// Package schoolgate is a client console for the school administration API.
// A Console wires the endpoint catalog, the session store and the request
// gateway together and is the single entry point for callers.
package schoolgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/devmarvs/schoolgate/apperr"
	"github.com/devmarvs/schoolgate/auth"
	"github.com/devmarvs/schoolgate/config"
	"github.com/devmarvs/schoolgate/endpoint"
	"github.com/devmarvs/schoolgate/httpclient"
	"github.com/devmarvs/schoolgate/logging"
	"github.com/devmarvs/schoolgate/metrics"
	"github.com/devmarvs/schoolgate/otel"
	"github.com/devmarvs/schoolgate/session"
)

// Console is the dependency root: one session store shared by one gateway,
// retrier and deduplicator.
type Console struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *endpoint.Registry
	sessions *session.Store
	gateway  *httpclient.Gateway
	retrier  *httpclient.Retrier
	dedupe   *httpclient.Deduplicator
	metrics  *metrics.Registry

	transport      http.RoundTripper
	storage        session.Storage
	sleep          func(context.Context, time.Duration) error
	interceptors   []httpclient.Interceptor
	tracerProvider trace.TracerProvider
	closers        []func() error
}

// Option customizes the console.
type Option func(*Console)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Console) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransport sets the HTTP transport under the gateway.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Console) {
		c.transport = transport
	}
}

// WithStorage sets the session storage, overriding the configured backend.
func WithStorage(storage session.Storage) Option {
	return func(c *Console) {
		c.storage = storage
	}
}

// WithRegistry replaces the school endpoint catalog.
func WithRegistry(registry *endpoint.Registry) Option {
	return func(c *Console) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithSleep replaces the retry backoff wait.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Console) {
		c.sleep = sleep
	}
}

// WithInterceptors appends gateway interceptors after the built-in ones.
func WithInterceptors(interceptors ...httpclient.Interceptor) Option {
	return func(c *Console) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// WithTracerProvider enables tracing with provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *Console) {
		c.tracerProvider = provider
	}
}

// New builds a console from cfg and restores the persisted session.
func New(ctx context.Context, cfg config.Config, options ...Option) (*Console, error) {
	cfg, err := config.Resolve(cfg)
	if err != nil {
		return nil, apperr.New(apperr.KindConfiguration, 0, "resolve config", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, apperr.New(apperr.KindConfiguration, 0, "invalid config", err)
	}

	c := &Console{
		cfg:      cfg,
		registry: endpoint.School(),
		metrics:  metrics.New(),
	}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = logging.NewLogger(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	}

	if c.storage == nil {
		storage, err := c.openStorage(ctx)
		if err != nil {
			c.Close()
			return nil, apperr.New(apperr.KindConfiguration, 0, "open session storage", err)
		}
		c.storage = storage
	}
	c.sessions = session.NewStore(c.storage, session.Options{Key: cfg.SessionKey, Logger: c.logger})
	c.sessions.Restore(ctx)

	c.gateway = httpclient.NewGateway(httpclient.Options{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout.Std(),
		Transport:    c.buildTransport(),
		Sessions:     c.sessions,
		Interceptors: c.buildInterceptors(),
		Logger:       c.logger,
		Metrics:      c.metrics,
	})
	c.retrier = httpclient.NewRetrier(cfg.RetryBaseDelay.Std(), cfg.RetryMaxDelay.Std())
	c.retrier.Sleep = c.sleep
	c.retrier.Logger = c.logger
	c.dedupe = httpclient.NewDeduplicator()

	c.logger.Debug("console ready",
		slog.String("environment", string(cfg.Environment)),
		slog.String("base_url", cfg.BaseURL),
		slog.Bool("authenticated", !c.sessions.Current().Anonymous()),
	)
	return c, nil
}

func (c *Console) openStorage(ctx context.Context) (session.Storage, error) {
	switch c.cfg.SessionBackend {
	case config.BackendMemory:
		return session.NewMemoryStorage(), nil
	case config.BackendRedis:
		storage, err := session.OpenRedis(c.cfg.RedisURL, session.RedisOptions{})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, storage.Close)
		return storage, nil
	case config.BackendPostgres:
		db, err := session.OpenPostgres(c.cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db.Close)
		storage, err := session.NewPostgresStorage(session.PostgresOptions{DB: db, Timeout: 5 * time.Second})
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureTable(ctx); err != nil {
			return nil, err
		}
		return storage, nil
	default:
		dir := c.cfg.SessionDir
		if dir == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				return nil, err
			}
			dir = filepath.Join(base, "schoolgate")
		}
		return session.NewFileStorage(dir), nil
	}
}

func (c *Console) buildTransport() http.RoundTripper {
	transport := c.transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if c.cfg.BreakerFailures <= 0 {
		return transport
	}
	breaker := httpclient.NewBreaker(httpclient.BreakerOptions{
		MaxFailures:  c.cfg.BreakerFailures,
		ResetTimeout: c.cfg.BreakerReset.Std(),
		OnStateChange: func(from, to httpclient.BreakerState) {
			c.logger.Warn("circuit breaker state changed", slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return &httpclient.BreakerTransport{Base: transport, Breaker: breaker}
}

func (c *Console) buildInterceptors() []httpclient.Interceptor {
	interceptors := []httpclient.Interceptor{httpclient.RequestID()}
	if c.cfg.RateLimit > 0 {
		burst := c.cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		interceptors = append(interceptors, httpclient.RateLimit(rate.NewLimiter(rate.Limit(c.cfg.RateLimit), burst)))
	}
	if c.cfg.Tracing || c.tracerProvider != nil {
		tracer := otel.NewTracer(otel.DefaultName, otel.Options{Provider: c.tracerProvider})
		interceptors = append(interceptors, tracer.Interceptor())
	}
	interceptors = append(interceptors, httpclient.Logging(c.logger))
	return append(interceptors, c.interceptors...)
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	User        *auth.Principal `json:"user"`
}

// Login authenticates and establishes the session. It is never retried or
// deduplicated.
func (c *Console) Login(ctx context.Context, email, password string) (*auth.Principal, error) {
	template, err := c.template(endpoint.AuthLogin)
	if err != nil {
		return nil, err
	}
	result, err := c.gateway.Execute(ctx, httpclient.Call{
		Operation: endpoint.AuthLogin,
		Template:  template,
		Body:      map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return nil, err
	}

	var payload loginResponse
	if err := result.Decode(&payload); err != nil || payload.AccessToken == "" || payload.User == nil {
		return nil, apperr.New(apperr.KindServerRejected, result.Status, "invalid login response", err)
	}
	if err := c.sessions.Establish(ctx, payload.User, payload.AccessToken); err != nil {
		if errors.Is(err, session.ErrPrincipalRequired) || errors.Is(err, session.ErrCredentialRequired) {
			return nil, apperr.New(apperr.KindServerRejected, result.Status, "invalid login response", err)
		}
		c.logger.Warn("session not persisted", slog.String("error", err.Error()))
	}
	return payload.User.Clone(), nil
}

// Logout clears the local session.
func (c *Console) Logout(ctx context.Context) {
	c.sessions.Invalidate(ctx, "logout")
}

// Profile fetches the logged-in principal from the server.
func (c *Console) Profile(ctx context.Context) (*auth.Principal, error) {
	result, err := c.Read(ctx, endpoint.AuthProfile)
	if err != nil {
		return nil, err
	}
	var payload struct {
		User *auth.Principal `json:"user"`
	}
	if err := result.Decode(&payload); err != nil || payload.User == nil {
		return nil, apperr.New(apperr.KindServerRejected, result.Status, "invalid profile response", err)
	}
	return payload.User, nil
}

// Read runs an idempotent GET operation through dedupe and retry.
// Concurrent identical reads share one execution.
func (c *Console) Read(ctx context.Context, operation string, params ...any) (*httpclient.Result, error) {
	template, err := c.template(operation)
	if err != nil {
		return nil, err
	}
	if method := template.Info().Method; method != http.MethodGet && method != http.MethodHead {
		return nil, apperr.Newf(apperr.KindConfiguration, "%s is a %s operation; use Write", operation, method)
	}

	call := httpclient.Call{Operation: operation, Template: template, Params: params}
	// Reads only join calls made under the same credential.
	key := httpclient.Key(operation, params...)
	if fingerprint := c.sessions.Current().Fingerprint(); fingerprint != "" {
		key = fingerprint + "|" + key
	}
	return c.dedupe.Do(ctx, key, func(ctx context.Context) (*httpclient.Result, error) {
		return c.retrier.Do(ctx, c.cfg.MaxAttempts, func(ctx context.Context) (*httpclient.Result, error) {
			return c.gateway.Execute(ctx, call)
		})
	})
}

// Write runs a state-changing operation exactly once.
func (c *Console) Write(ctx context.Context, operation string, body any, params ...any) (*httpclient.Result, error) {
	template, err := c.template(operation)
	if err != nil {
		return nil, err
	}
	return c.gateway.Execute(ctx, httpclient.Call{Operation: operation, Template: template, Params: params, Body: body})
}

func (c *Console) template(operation string) (endpoint.Template, error) {
	template, ok := c.registry.Lookup(operation)
	if !ok {
		return endpoint.Template{}, apperr.New(apperr.KindConfiguration, 0, fmt.Sprintf("unknown operation %q", operation), endpoint.ErrInvalidTemplate)
	}
	return template, nil
}

// Session returns the current session snapshot.
func (c *Console) Session() session.Snapshot {
	return c.sessions.Current()
}

// Sessions returns the session store, e.g. to subscribe to events.
func (c *Console) Sessions() *session.Store {
	return c.sessions
}

// Registry returns the endpoint catalog.
func (c *Console) Registry() *endpoint.Registry {
	return c.registry
}

// Config returns the resolved configuration.
func (c *Console) Config() config.Config {
	return c.cfg
}

// Metrics returns a snapshot of call metrics.
func (c *Console) Metrics() metrics.Snapshot {
	return c.metrics.Snapshot()
}

// Close cancels in-flight reads and their retry backoff, stops the session
// expiry timer and releases storage connections.
func (c *Console) Close() error {
	if c.dedupe != nil {
		c.dedupe.Close()
	}
	if c.sessions != nil {
		c.sessions.Close()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
