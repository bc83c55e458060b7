package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/devmarvs/schoolgate/apperr"
)

// PrometheusHandler exposes metrics in Prometheus text format.
func PrometheusHandler(registry *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_ = WritePrometheus(w, registry.Snapshot())
	})
}

// WritePrometheus renders snap in Prometheus text exposition format.
func WritePrometheus(w io.Writer, snap Snapshot) error {
	p := &printer{w: w}

	p.printf("# HELP schoolgate_requests_total Total gateway calls\n")
	p.printf("# TYPE schoolgate_requests_total counter\n")
	p.printf("schoolgate_requests_total %d\n", snap.Requests)

	p.printf("# HELP schoolgate_errors_total Total failed gateway calls\n")
	p.printf("# TYPE schoolgate_errors_total counter\n")
	p.printf("schoolgate_errors_total %d\n", snap.Errors)

	p.printf("# HELP schoolgate_in_flight In-flight gateway calls\n")
	p.printf("# TYPE schoolgate_in_flight gauge\n")
	p.printf("schoolgate_in_flight %d\n", snap.InFlight)

	p.printf("# HELP schoolgate_latency_seconds Gateway call latency\n")
	p.printf("# TYPE schoolgate_latency_seconds histogram\n")
	cumulative := int64(0)
	for _, bucket := range snap.Latency.Buckets {
		cumulative += bucket.Count
		p.printf("schoolgate_latency_seconds_bucket{le=\"%g\"} %d\n", bucket.UpperBound.Seconds(), cumulative)
	}
	p.printf("schoolgate_latency_seconds_bucket{le=\"+Inf\"} %d\n", snap.Latency.Count)
	p.printf("schoolgate_latency_seconds_sum %g\n", snap.Latency.Total.Seconds())
	p.printf("schoolgate_latency_seconds_count %d\n", snap.Latency.Count)

	if len(snap.Statuses) > 0 {
		p.printf("# HELP schoolgate_statuses_total Responses by status\n")
		p.printf("# TYPE schoolgate_statuses_total counter\n")
		codes := make([]int, 0, len(snap.Statuses))
		for code := range snap.Statuses {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			p.printf("schoolgate_statuses_total{code=\"%d\"} %d\n", code, snap.Statuses[code])
		}
	}

	if len(snap.Failures) > 0 {
		p.printf("# HELP schoolgate_failures_total Failed calls by kind\n")
		p.printf("# TYPE schoolgate_failures_total counter\n")
		kinds := make([]string, 0, len(snap.Failures))
		for kind := range snap.Failures {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			p.printf("schoolgate_failures_total{kind=\"%s\"} %d\n", kind, snap.Failures[apperr.Kind(kind)])
		}
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
