// Command loadgen drives a running reservations server. The "race" scenario
// fires concurrent submits for one slot and fails when more than the
// resource capacity were accepted. The "latency" scenario reports request
// latency percentiles across distinct slots.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"calendra/pkg/client"
	"calendra/pkg/logger"
	"calendra/pkg/model"
)

type settings struct {
	baseURL     string
	resourceID  string
	requests    int
	concurrency int
	token       string
}

func main() {
	log := logger.New(logger.Config{Format: "text", Service: "loadgen"})

	if len(os.Args) < 2 {
		log.Fatal("Usage: loadgen [race|latency]")
	}

	s := settings{
		baseURL:     envStr("LOADGEN_BASE_URL", "http://localhost:8080"),
		resourceID:  envStr("LOADGEN_RESOURCE_ID", "A101"),
		requests:    envNum("LOADGEN_REQUESTS", 200),
		concurrency: envNum("LOADGEN_CONCURRENCY", 20),
		token:       os.Getenv("LOADGEN_TOKEN"),
	}

	ctx := context.Background()
	hc := client.NewHttpClient(s.baseURL)
	hc.Token = s.token
	if err := hc.WaitForHealthy(ctx, 30*time.Second); err != nil {
		log.Fatal("Server not reachable", "base_url", s.baseURL, "error", err)
	}

	capacity, err := resourceCapacity(ctx, hc.As("loadgen", ""), s.resourceID)
	if err != nil {
		log.Fatal("Failed to load resource", "resource_id", s.resourceID, "error", err)
	}

	// Slots start tomorrow on the hour so reruns do not collide with the grace window.
	base := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)

	switch os.Args[1] {
	case "race":
		res := runRace(ctx, hc, s, base)
		log.Info("Race finished",
			"resource_id", s.resourceID,
			"requests", s.requests,
			"accepted", res.accepted,
			"conflicts", res.conflicts,
			"errors", res.failed,
			"capacity", capacity,
		)
		if res.accepted > capacity {
			log.Fatal("Double booking detected", "accepted", res.accepted, "capacity", capacity)
		}
	case "latency":
		res := runLatency(ctx, hc, s, base)
		log.Info("Latency finished",
			"requests", s.requests,
			"accepted", res.accepted,
			"conflicts", res.conflicts,
			"errors", res.failed,
			"p50", res.percentile(50),
			"p95", res.percentile(95),
			"p99", res.percentile(99),
			"throughput_rps", fmt.Sprintf("%.1f", res.throughput()),
		)
	default:
		log.Fatal("Unknown scenario", "scenario", os.Args[1])
	}
}

func resourceCapacity(ctx context.Context, hc *client.HttpClient, id string) (int, error) {
	resp, err := client.NewResourceClient(hc).GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
	}
	var r model.Resource
	if err := resp.DecodeData(&r); err != nil {
		return 0, err
	}
	return max(r.Capacity, 1), nil
}

// runRace sends every request for the same hour, each from its own requester.
func runRace(ctx context.Context, hc *client.HttpClient, s settings, base time.Time) *results {
	return run(ctx, s, func(i int) (*client.Response, error) {
		c := client.NewReservationClient(hc.As(fmt.Sprintf("racer-%d", i), ""))
		return c.Submit(ctx, model.ReservationRequest{
			ResourceID: s.resourceID,
			Start:      base,
			End:        base.Add(time.Hour),
		})
	})
}

// runLatency gives every request its own 15 minute slot.
func runLatency(ctx context.Context, hc *client.HttpClient, s settings, base time.Time) *results {
	c := client.NewReservationClient(hc.As("loadgen", ""))
	return run(ctx, s, func(i int) (*client.Response, error) {
		start := base.Add(time.Duration(i) * 15 * time.Minute)
		return c.Submit(ctx, model.ReservationRequest{
			ResourceID: s.resourceID,
			Start:      start,
			End:        start.Add(15 * time.Minute),
		})
	})
}

func run(ctx context.Context, s settings, call func(i int) (*client.Response, error)) *results {
	res := &results{}
	jobs := make(chan int)
	var wg sync.WaitGroup

	began := time.Now()
	for range s.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				t0 := time.Now()
				resp, err := call(i)
				res.observe(time.Since(t0), resp, err)
			}
		}()
	}
	for i := range s.requests {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	res.elapsed = time.Since(began)
	return res
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envNum(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
