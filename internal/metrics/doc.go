// Package metrics keeps in-process statistics about calls to the nutrition
// provider.
//
// The Collector implements upstream.Observer. Attempt and outcome
// notifications are pushed onto a buffered channel without blocking the
// request path and are folded into per-operation counters by a single
// goroutine:
//   - calls, successes and failures by kind
//   - attempts, status codes and transport errors
//   - latency average, P50 and P95
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	go collector.Run(ctx)
//
//	client, _ := upstream.New(cfg, upstream.WithObserver(collector))
//
//	snapshot := collector.Snapshot()
//
// Remaining events are drained when the context is cancelled. A full buffer
// drops events and counts them in Snapshot.Dropped.
package metrics
