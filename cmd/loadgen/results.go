package main

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"calendra/pkg/client"
)

type results struct {
	mu        sync.Mutex
	latencies []time.Duration
	accepted  int
	conflicts int
	failed    int
	elapsed   time.Duration
}

func (r *results) observe(d time.Duration, resp *client.Response, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latencies = append(r.latencies, d)
	switch {
	case err != nil:
		r.failed++
	case resp.StatusCode == http.StatusCreated:
		r.accepted++
	case resp.StatusCode == http.StatusConflict:
		r.conflicts++
	default:
		r.failed++
	}
}

// percentile uses the nearest-rank method.
func (r *results) percentile(p int) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.latencies) == 0 {
		return 0
	}
	sorted := slices.Clone(r.latencies)
	slices.Sort(sorted)
	rank := (p*len(sorted) + 99) / 100
	return sorted[min(max(rank, 1), len(sorted))-1]
}

func (r *results) throughput() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(len(r.latencies)) / r.elapsed.Seconds()
}
