package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/devmarvs/schoolgate/apperr"
)

// DefaultBuckets are the latency histogram upper bounds.
var DefaultBuckets = []time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
	15 * time.Second,
	30 * time.Second,
}

// Snapshot captures current metrics values.
type Snapshot struct {
	Requests int64                 `json:"requests"`
	Errors   int64                 `json:"errors"`
	InFlight int64                 `json:"in_flight"`
	Latency  LatencySnapshot       `json:"latency"`
	Statuses map[int]int64         `json:"statuses"`
	Failures map[apperr.Kind]int64 `json:"failures"`
}

// LatencySnapshot captures latency statistics.
type LatencySnapshot struct {
	Count   int64         `json:"count"`
	Total   time.Duration `json:"total"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Buckets []Bucket      `json:"buckets"`
}

// Bucket counts calls whose latency fell at or below UpperBound and above
// the previous bucket's bound.
type Bucket struct {
	UpperBound time.Duration `json:"upper_bound"`
	Count      int64         `json:"count"`
}

// Registry tracks gateway call metrics.
type Registry struct {
	mu       sync.Mutex
	requests int64
	errors   int64
	inFlight int64
	latency  LatencySnapshot
	statuses map[int]int64
	failures map[apperr.Kind]int64
	now      func() time.Time
}

// New creates a registry with DefaultBuckets.
func New() *Registry {
	return NewWithBuckets(DefaultBuckets)
}

// NewWithBuckets creates a registry with custom latency buckets.
func NewWithBuckets(bounds []time.Duration) *Registry {
	sorted := append([]time.Duration(nil), bounds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	buckets := make([]Bucket, 0, len(sorted))
	for _, bound := range sorted {
		if bound <= 0 {
			continue
		}
		buckets = append(buckets, Bucket{UpperBound: bound})
	}
	return &Registry{
		latency:  LatencySnapshot{Buckets: buckets},
		statuses: make(map[int]int64),
		failures: make(map[apperr.Kind]int64),
		now:      time.Now,
	}
}

// Start marks the start of a call.
func (r *Registry) Start() time.Time {
	if r == nil {
		return time.Now()
	}
	r.mu.Lock()
	r.inFlight++
	r.mu.Unlock()
	return r.now()
}

// End records a completed call. A failed call is counted under its kind.
func (r *Registry) End(start time.Time, status int, err error) {
	if r == nil {
		return
	}
	duration := r.now().Sub(start)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.inFlight--
	r.requests++
	if err != nil {
		r.errors++
		kind := apperr.KindOf(err)
		if kind == "" {
			kind = "unknown"
		}
		r.failures[kind]++
	}

	r.latency.Count++
	r.latency.Total += duration
	if r.latency.Min == 0 || duration < r.latency.Min {
		r.latency.Min = duration
	}
	if duration > r.latency.Max {
		r.latency.Max = duration
	}
	for i := range r.latency.Buckets {
		if duration <= r.latency.Buckets[i].UpperBound {
			r.latency.Buckets[i].Count++
			break
		}
	}

	if status != 0 {
		r.statuses[status]++
	}
}

// Snapshot returns a copy of metrics data.
func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make(map[int]int64, len(r.statuses))
	for code, count := range r.statuses {
		statuses[code] = count
	}
	failures := make(map[apperr.Kind]int64, len(r.failures))
	for kind, count := range r.failures {
		failures[kind] = count
	}
	latency := r.latency
	latency.Buckets = append([]Bucket(nil), r.latency.Buckets...)

	return Snapshot{
		Requests: r.requests,
		Errors:   r.errors,
		InFlight: r.inFlight,
		Latency:  latency,
		Statuses: statuses,
		Failures: failures,
	}
}

// Handler exposes metrics as JSON.
func Handler(registry *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(registry.Snapshot())
	})
}
