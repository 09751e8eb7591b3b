// Loadtest sends concurrent estimate requests to a running proxy and reports
// throughput, latency percentiles and the distribution of errors.
//
// Usage:
//
//	go run ./scripts/loadtest -url http://localhost:3001/api/get-macros -concurrency 10 -requests 200
//	go run ./scripts/loadtest -url http://localhost:3001/api/get-macros -out summary.json
//
// Pair it with scripts/fakeprovider to watch retries without spending quota.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

var queries = []string{
	"2 large eggs and 100g rice",
	"1 medium banana",
	"a bowl of oatmeal with milk",
	"grilled chicken breast 150g",
	"slice of pepperoni pizza",
}

type summary struct {
	Target        string           `json:"target"`
	Requests      int              `json:"requests"`
	Concurrency   int              `json:"concurrency"`
	Success       int32            `json:"success"`
	Failure       int32            `json:"failure"`
	DurationMS    int64            `json:"duration_ms"`
	ThroughputRPS float64          `json:"throughput_rps"`
	StatusCodes   map[int]int32    `json:"status_codes"`
	Errors        map[string]int32 `json:"errors"`
	P50MS         float64          `json:"p50_ms"`
	P95MS         float64          `json:"p95_ms"`
	P99MS         float64          `json:"p99_ms"`
}

func main() {
	var (
		url         = flag.String("url", "http://localhost:3001/api/get-macros", "Target URL")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		timeout     = flag.Duration("timeout", 2*time.Minute, "Per-request timeout")
		outJSON     = flag.String("out", "", "Write JSON summary to this file (optional)")
		verbose     = flag.Bool("v", false, "Verbose per-request logging to stdout")
	)
	flag.Parse()

	client := &http.Client{Timeout: *timeout}

	var success, failure atomic.Int32
	var mutex sync.Mutex
	var latencies []time.Duration
	statusCodes := make(map[int]int32)
	errorsSeen := make(map[string]int32)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*concurrency)

	testStart := time.Now()

	for idx := 0; idx < *requests; idx++ {
		g.Go(func() error {
			body := fmt.Sprintf(`{"query":%q}`, queries[idx%len(queries)])
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, *url, strings.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			start := time.Now()
			resp, err := client.Do(req)
			dur := time.Since(start)

			mutex.Lock()
			defer mutex.Unlock()
			latencies = append(latencies, dur)

			if err != nil {
				failure.Add(1)
				errorsSeen[err.Error()]++
				return nil
			}
			defer resp.Body.Close()

			payload, _ := io.ReadAll(resp.Body)
			statusCodes[resp.StatusCode]++

			if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
				success.Add(1)
			} else {
				failure.Add(1)
				errorsSeen[gjson.GetBytes(payload, "error").String()]++
			}

			if *verbose {
				fmt.Printf("idx=%d status=%d dur=%v request_id=%s\n", idx, resp.StatusCode, dur, resp.Header.Get("X-Request-Id"))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
		os.Exit(1)
	}

	totalDuration := time.Since(testStart)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	report := summary{
		Target:        *url,
		Requests:      *requests,
		Concurrency:   *concurrency,
		Success:       success.Load(),
		Failure:       failure.Load(),
		DurationMS:    totalDuration.Milliseconds(),
		ThroughputRPS: float64(*requests) / totalDuration.Seconds(),
		StatusCodes:   statusCodes,
		Errors:        errorsSeen,
		P50MS:         pick(latencies, 0.50),
		P95MS:         pick(latencies, 0.95),
		P99MS:         pick(latencies, 0.99),
	}

	fmt.Println("--- Load Test Summary ---")
	fmt.Printf("Target: %s\n", report.Target)
	fmt.Printf("Requests: %d  Concurrency: %d\n", report.Requests, report.Concurrency)
	fmt.Printf("Success: %d  Failure: %d\n", report.Success, report.Failure)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s\n", totalDuration, report.ThroughputRPS)
	fmt.Printf("Latency: p50=%.0fms p95=%.0fms p99=%.0fms\n", report.P50MS, report.P95MS, report.P99MS)

	fmt.Println("\nStatus codes:")
	codes := make([]int, 0, len(statusCodes))
	for k := range statusCodes {
		codes = append(codes, k)
	}
	sort.Ints(codes)
	for _, k := range codes {
		fmt.Printf("  %d -> %d\n", k, statusCodes[k])
	}

	if len(errorsSeen) > 0 {
		fmt.Println("\nErrors:")
		for msg, n := range errorsSeen {
			fmt.Printf("  %q -> %d\n", msg, n)
		}
	}

	if *outJSON != "" {
		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create json file: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		f.Close()
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if report.Failure > 0 {
		os.Exit(2)
	}
}

func pick(sorted []time.Duration, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return float64(sorted[int(float64(len(sorted)-1)*p)].Milliseconds())
}
