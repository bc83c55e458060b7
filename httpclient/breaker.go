package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by the breaker transport while calls are shed.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerState is the admission state of a Breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerCounts is a point-in-time view of breaker activity.
type BreakerCounts struct {
	ConsecutiveFailures int
	Trips               int64
	Rejected            int64
}

// BreakerOptions configures a Breaker.
type BreakerOptions struct {
	// MaxFailures consecutive server faults open the breaker. Default 5.
	MaxFailures int
	// ResetTimeout is how long the breaker stays open before a probe. Default 30s.
	ResetTimeout  time.Duration
	Now           func() time.Time
	OnStateChange func(from, to BreakerState)
}

// Breaker sheds calls to a failing school API. After MaxFailures consecutive
// faults it opens; once ResetTimeout passes a single probe is admitted and
// its outcome closes or reopens the breaker.
type Breaker struct {
	maxFailures   int
	resetTimeout  time.Duration
	now           func() time.Time
	onStateChange func(from, to BreakerState)

	mu       sync.Mutex
	state    BreakerState
	openedAt time.Time
	probing  bool
	counts   BreakerCounts
}

// NewBreaker builds a closed Breaker.
func NewBreaker(options BreakerOptions) *Breaker {
	b := &Breaker{
		maxFailures:   options.MaxFailures,
		resetTimeout:  options.ResetTimeout,
		now:           options.Now,
		onStateChange: options.OnStateChange,
	}
	if b.maxFailures <= 0 {
		b.maxFailures = 5
	}
	if b.resetTimeout <= 0 {
		b.resetTimeout = 30 * time.Second
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns a copy of the activity counters.
func (b *Breaker) Counts() BreakerCounts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Acquire admits one call. The caller must invoke done exactly once with
// whether the call counted as a server fault.
func (b *Breaker) Acquire() (done func(fault bool), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		b.transition(BreakerHalfOpen)
	}
	switch {
	case b.state == BreakerOpen, b.state == BreakerHalfOpen && b.probing:
		b.counts.Rejected++
		return nil, ErrCircuitOpen
	case b.state == BreakerHalfOpen:
		b.probing = true
	}

	var once sync.Once
	return func(fault bool) {
		once.Do(func() { b.settle(fault) })
	}, nil
}

func (b *Breaker) settle(fault bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.probing = false
		b.counts.ConsecutiveFailures = 0
		if fault {
			b.trip()
		} else {
			b.transition(BreakerClosed)
		}
		return
	}
	if b.state == BreakerOpen {
		return
	}

	if !fault {
		b.counts.ConsecutiveFailures = 0
		return
	}
	b.counts.ConsecutiveFailures++
	if b.counts.ConsecutiveFailures >= b.maxFailures {
		b.counts.ConsecutiveFailures = 0
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.counts.Trips++
	b.openedAt = b.now()
	b.transition(BreakerOpen)
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if b.onStateChange != nil && from != to {
		b.onStateChange(from, to)
	}
}

// BreakerTransport guards a base transport with a Breaker.
type BreakerTransport struct {
	Base    http.RoundTripper
	Breaker *Breaker
	// IsFault classifies a round trip; ServerFault when nil.
	IsFault func(resp *http.Response, err error) bool
}

// RoundTrip sends req unless the breaker is shedding calls.
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Breaker == nil {
		return base.RoundTrip(req)
	}

	done, err := t.Breaker.Acquire()
	if err != nil {
		return nil, err
	}
	resp, err := base.RoundTrip(req)
	isFault := t.IsFault
	if isFault == nil {
		isFault = ServerFault
	}
	done(isFault(resp, err))
	return resp, err
}

// ServerFault counts transport errors and 5xx responses against the server.
// Cancellations and deadlines are the caller's doing and never count.
func ServerFault(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return resp != nil && resp.StatusCode >= http.StatusInternalServerError
}
