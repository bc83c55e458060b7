package httpclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devmarvs/schoolgate/apperr"
)

func TestDeduplicatorSharesInFlightCall(t *testing.T) {
	dedupe := NewDeduplicator()
	joined := make(chan string, 2)
	dedupe.joined = func(key string) { joined <- key }

	release := make(chan struct{})
	var runs int32
	producer := func(ctx context.Context) (*Result, error) {
		atomic.AddInt32(&runs, 1)
		<-release
		return &Result{Status: 200, Data: "roster"}, nil
	}

	results := make([]*Result, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := dedupe.Do(context.Background(), "students:classroom:7", producer)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = result
		}(i)
	}
	<-joined
	<-joined
	close(release)
	wg.Wait()

	if runs != 1 {
		t.Fatalf("expected producer to run once, got %d", runs)
	}
	if results[0] == nil || results[0] != results[1] {
		t.Fatalf("expected identical results, got %p and %p", results[0], results[1])
	}
}

func TestDeduplicatorSharesFailure(t *testing.T) {
	dedupe := NewDeduplicator()
	joined := make(chan string, 2)
	dedupe.joined = func(key string) { joined <- key }

	release := make(chan struct{})
	failure := apperr.New(apperr.KindNetwork, 0, "down", nil)
	producer := func(ctx context.Context) (*Result, error) {
		<-release
		return nil, failure
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = dedupe.Do(context.Background(), "k", producer)
		}(i)
	}
	<-joined
	<-joined
	close(release)
	wg.Wait()

	for _, err := range errs {
		if apperr.As(err) != failure {
			t.Fatalf("expected shared failure, got %v", err)
		}
	}
}

func TestDeduplicatorRunsAgainAfterSettle(t *testing.T) {
	dedupe := NewDeduplicator()
	runs := 0
	producer := func(ctx context.Context) (*Result, error) {
		runs++
		return &Result{Status: 200}, nil
	}
	for i := 0; i < 3; i++ {
		if _, err := dedupe.Do(context.Background(), "k", producer); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if runs != 3 {
		t.Fatalf("expected sequential calls to run separately, got %d", runs)
	}
}

func TestDeduplicatorWaiterCancellation(t *testing.T) {
	dedupe := NewDeduplicator()
	started := make(chan struct{})
	release := make(chan struct{})
	var producerCtxErr atomic.Value
	producer := func(ctx context.Context) (*Result, error) {
		close(started)
		<-release
		producerCtxErr.Store(ctx.Err() == nil)
		return &Result{Status: 200}, nil
	}

	done := make(chan *Result, 1)
	go func() {
		result, _ := dedupe.Do(context.Background(), "k", producer)
		done <- result
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dedupe.Do(ctx, "k", producer); !apperr.Is(err, apperr.KindCanceled) {
		t.Fatalf("expected canceled waiter, got %v", err)
	}

	close(release)
	select {
	case result := <-done:
		if result == nil || result.Status != 200 {
			t.Fatalf("expected first caller to get the result")
		}
	case <-time.After(time.Second):
		t.Fatalf("first caller never settled")
	}
	if ok, _ := producerCtxErr.Load().(bool); !ok {
		t.Fatalf("producer context must not be canceled by a waiter")
	}
}

func TestKey(t *testing.T) {
	cases := []struct {
		operation string
		params    []any
		want      string
	}{
		{"students.classroom", []any{7}, "students.classroom:7"},
		{"grades.classroom", []any{"3", int64(2)}, "grades.classroom:3:2"},
		{"reports.list", []any{map[string]int{"page": 2}}, `reports.list:{"page":2}`},
		{"auth.profile", nil, "auth.profile"},
	}
	for _, tc := range cases {
		if got := Key(tc.operation, tc.params...); got != tc.want {
			t.Fatalf("Key(%s, %v) = %q, want %q", tc.operation, tc.params, got, tc.want)
		}
	}
}

func TestDeduplicatorCloseCancelsProducer(t *testing.T) {
	dedupe := NewDeduplicator()
	started := make(chan struct{})
	producer := func(ctx context.Context) (*Result, error) {
		close(started)
		<-ctx.Done()
		return nil, contextFailure(ctx, ctx.Err())
	}

	failed := make(chan error, 1)
	go func() {
		_, err := dedupe.Do(context.Background(), "grades:student:10", producer)
		failed <- err
	}()
	<-started
	dedupe.Close()

	select {
	case err := <-failed:
		if !apperr.Is(err, apperr.KindCanceled) {
			t.Fatalf("expected canceled failure, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("producer kept running after close")
	}

	var ran bool
	_, err := dedupe.Do(context.Background(), "grades:student:10", func(ctx context.Context) (*Result, error) {
		ran = true
		return &Result{Status: 200}, nil
	})
	if !apperr.Is(err, apperr.KindCanceled) || ran {
		t.Fatalf("expected closed deduplicator to refuse work, got %v (ran=%v)", err, ran)
	}
}
