package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/devmarvs/schoolgate/apperr"
)

// Deduplicator collapses concurrent calls that share a key into one
// execution. Every waiter receives the same Result pointer or error; the
// Result must be treated as read-only.
type Deduplicator struct {
	group singleflight.Group
	// done ends every shared producer; closed by Close.
	done   context.Context
	cancel context.CancelFunc
	// joined runs after a caller is registered under key.
	joined func(key string)
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	done, cancel := context.WithCancel(context.Background())
	return &Deduplicator{done: done, cancel: cancel}
}

// Close cancels every in-flight producer, including its retry backoff.
// Calls made after Close fail with a Canceled failure.
func (d *Deduplicator) Close() {
	d.cancel()
}

// Do runs producer unless a call with key is already in flight, in which
// case it waits for that call. The entry is dropped once the producer
// settles, so later calls run again. A waiter whose ctx ends stops waiting
// with a Canceled or Timeout failure; the producer keeps running for the
// others until Close.
func (d *Deduplicator) Do(ctx context.Context, key string, producer CallFunc) (*Result, error) {
	if err := d.done.Err(); err != nil {
		return nil, apperr.New(apperr.KindCanceled, 0, "deduplicator closed", err)
	}
	ch := d.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(d.done, cancel)
		defer stop()
		return producer(shared)
	})
	if d.joined != nil {
		d.joined(key)
	}

	select {
	case <-ctx.Done():
		return nil, contextFailure(ctx, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result, _ := res.Val.(*Result)
		return result, nil
	}
}

// Forget drops key so the next call starts a new execution.
func (d *Deduplicator) Forget(key string) {
	d.group.Forget(key)
}

// Key derives a dedupe key from an operation and its parameters. Scalars
// are joined with ":"; other values are JSON-encoded.
func Key(operation string, params ...any) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, operation)
	for _, param := range params {
		parts = append(parts, keyPart(param))
	}
	return strings.Join(parts, ":")
}

func keyPart(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return fmt.Sprint(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
