package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/devmarvs/schoolgate/apperr"
	"github.com/devmarvs/schoolgate/endpoint"
)

type stubTransport struct {
	responses []int
	errs      []error
	calls     int
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	idx := s.calls
	s.calls++

	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}

	status := http.StatusOK
	if idx < len(s.responses) {
		status = s.responses[idx]
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("ok")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func TestBreakerTransportLifecycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	transport := &stubTransport{errs: []error{errors.New("fail"), nil}, responses: []int{http.StatusOK, http.StatusOK}}
	var changes []string
	breaker := NewBreaker(BreakerOptions{
		MaxFailures:  1,
		ResetTimeout: time.Minute,
		Now:          func() time.Time { return now },
		OnStateChange: func(from, to BreakerState) {
			changes = append(changes, from.String()+">"+to.String())
		},
	})
	wrapper := BreakerTransport{Base: transport, Breaker: breaker}

	req, _ := http.NewRequest(http.MethodGet, "http://school.test/api/auth/profile", nil)
	if _, err := wrapper.RoundTrip(req); err == nil {
		t.Fatalf("expected error")
	}
	if breaker.State() != BreakerOpen {
		t.Fatalf("expected open breaker, got %s", breaker.State())
	}

	if _, err := wrapper.RoundTrip(req); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	resp, err := wrapper.RoundTrip(req)
	if err != nil {
		t.Fatalf("expected success after reset, got %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := strings.Join(changes, ","); got != "closed>open,open>half-open,half-open>closed" {
		t.Fatalf("unexpected state changes: %s", got)
	}
	counts := breaker.Counts()
	if counts.Trips != 1 || counts.Rejected != 1 || counts.ConsecutiveFailures != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if transport.calls != 2 {
		t.Fatalf("expected two transport calls, got %d", transport.calls)
	}
}

func TestBreakerAdmitsSingleProbe(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	breaker := NewBreaker(BreakerOptions{MaxFailures: 2, ResetTimeout: time.Second, Now: func() time.Time { return now }})

	for i := 0; i < 2; i++ {
		done, err := breaker.Acquire()
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		done(true)
	}
	if breaker.State() != BreakerOpen {
		t.Fatalf("expected open after two faults, got %s", breaker.State())
	}

	now = now.Add(time.Second)
	probe, err := breaker.Acquire()
	if err != nil {
		t.Fatalf("expected probe admitted: %v", err)
	}
	if _, err := breaker.Acquire(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected second caller rejected during probe, got %v", err)
	}

	probe(true)
	probe(false)
	if breaker.State() != BreakerOpen {
		t.Fatalf("failed probe should reopen, got %s", breaker.State())
	}
	if counts := breaker.Counts(); counts.Trips != 2 {
		t.Fatalf("expected two trips, got %+v", counts)
	}
}

func TestServerFault(t *testing.T) {
	if ServerFault(nil, context.Canceled) {
		t.Fatalf("cancellation must not count as a fault")
	}
	if ServerFault(nil, context.DeadlineExceeded) {
		t.Fatalf("deadline must not count as a fault")
	}
	if !ServerFault(nil, errors.New("connection reset")) {
		t.Fatalf("transport errors should count")
	}
	if !ServerFault(&http.Response{StatusCode: 503}, nil) {
		t.Fatalf("5xx should count")
	}
	if ServerFault(&http.Response{StatusCode: 404}, nil) {
		t.Fatalf("4xx should not count")
	}
}

func TestOpenBreakerSurfacesAsNetworkError(t *testing.T) {
	breaker := NewBreaker(BreakerOptions{MaxFailures: 1, ResetTimeout: time.Hour})
	transport := &stubTransport{errs: []error{errors.New("connection refused")}}
	gateway := NewGateway(Options{
		BaseURL:   "http://school.test/api",
		Transport: &BreakerTransport{Base: transport, Breaker: breaker},
	})
	call := Call{Operation: "login", Template: endpoint.Fixed(http.MethodPost, "/auth/login", endpoint.Public())}

	if _, err := gateway.Execute(context.Background(), call); !apperr.Is(err, apperr.KindNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	_, err := gateway.Execute(context.Background(), call)
	if !apperr.Is(err, apperr.KindNetwork) || !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open network error, got %v", err)
	}
	if transport.calls != 1 {
		t.Fatalf("expected one transport call, got %d", transport.calls)
	}
}
