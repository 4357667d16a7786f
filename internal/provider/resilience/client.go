package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded is returned when all retry attempts have been exhausted.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrBodyNotReplayable is returned when a request with a body cannot be retried.
	ErrBodyNotReplayable = errors.New("request body cannot be replayed")
)

// ResultObserver is notified once per Do call with the total elapsed time and
// the final error, if any.
type ResultObserver func(provider string, elapsed time.Duration, err error)

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client in the registry, logs and metrics.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts.
	// Default: 3
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry receives the client on construction and is fed the outcome
	// of every call. Optional.
	Registry *Registry

	// Observer is called after every call. Optional.
	Observer ResultObserver

	// Logger for retry and breaker events.
	Logger zerolog.Logger
}

// DefaultClientConfig returns sensible defaults for the resilient client.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CircuitBreaker:  &cbConfig,
		Logger:          zerolog.Nop(),
	}
}

// Client is a resilient HTTP client with circuit breaker and retry logic.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
}

// NewClient creates a new resilient HTTP client and registers it with the
// configured registry.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	if cbConfig.OnStateChange == nil {
		logger := cfg.Logger
		cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		}
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type param, not response
		config:         cfg,
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}

	return c
}

// Name returns the client's provider name.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes an HTTP request with circuit breaker protection and retry logic.
// The request is retried on transient failures (5xx, network errors) with exponential backoff.
// Returns immediately with ErrCircuitOpen if the circuit breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes an HTTP request with the given context. Requests
// with a body must carry GetBody (as http.NewRequest sets for in-memory
// readers) so that every attempt sends the full body.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)
	c.observe(time.Since(start), resp, err)
	return resp, err
}

// call carries the state of one Do across its attempts.
type call struct {
	c       *Client
	ctx     context.Context
	req     *http.Request
	hasBody bool

	// last holds the most recent 5xx response, kept so that a server error
	// outlasting every retry reaches the caller as a response.
	last *http.Response
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	cl := &call{c: c, ctx: ctx, req: req}
	cl.hasBody = req.Body != nil && req.Body != http.NoBody
	if cl.hasBody && req.GetBody == nil && c.config.MaxRetries > 0 {
		return nil, ErrBodyNotReplayable
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		c.config.Logger.Debug().
			Err(err).
			Str("provider", c.config.Name).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("provider request failed, retrying")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)
	err := backoff.RetryNotify(cl.attempt, policy, notify)
	switch {
	case err == nil:
		return cl.last, nil
	case cl.last != nil && ctx.Err() == nil:
		return cl.last, nil
	}
	cl.discard()
	return nil, err
}

func (cl *call) attempt() error {
	req := cl.req.Clone(cl.ctx)
	if cl.hasBody {
		body, err := cl.req.GetBody()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("rewinding request body: %w", err))
		}
		req.Body = body
	}

	resp, err := cl.c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // handed to the caller
		r, err := cl.c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		// A 5xx counts against the breaker.
		if r.StatusCode >= http.StatusInternalServerError {
			return r, &ServerError{StatusCode: r.StatusCode}
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return backoff.Permanent(ErrCircuitOpen)
	}

	cl.discard()
	cl.last = resp
	return err
}

func (cl *call) discard() {
	if cl.last != nil {
		cl.last.Body.Close()
		cl.last = nil
	}
}

func (c *Client) observe(elapsed time.Duration, resp *http.Response, err error) {
	if err == nil && resp != nil && resp.StatusCode >= 500 {
		err = &ServerError{StatusCode: resp.StatusCode}
	}

	if c.config.Registry != nil {
		c.config.Registry.Record(c.config.Name, elapsed, err)
	}

	if c.config.Observer != nil {
		c.config.Observer(c.config.Name, elapsed, err)
	}
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
