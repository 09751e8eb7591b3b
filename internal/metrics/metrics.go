package metrics

import (
	"sort"
	"sync"
	"time"
)

// maxLatencySamples bounds the latency window kept per operation.
const maxLatencySamples = 1000

type Metrics struct {
	mutex           sync.RWMutex
	calls           map[string]int64
	successes       map[string]int64
	attempts        map[string]int64
	transportErrors map[string]int64
	failures        map[string]map[string]int64
	statusCodes     map[string]map[int]int64
	latencies       map[string][]time.Duration
	startTime       time.Time
}

type Snapshot struct {
	TotalCalls int64                       `json:"total_calls"`
	Uptime     time.Duration               `json:"uptime"`
	Dropped    int64                       `json:"dropped_events"`
	Operations map[string]OperationMetrics `json:"operations"`
}

type OperationMetrics struct {
	Calls           int64            `json:"calls"`
	Successes       int64            `json:"successes"`
	Attempts        int64            `json:"attempts"`
	TransportErrors int64            `json:"transport_errors"`
	Failures        map[string]int64 `json:"failures"`
	StatusCodes     map[int]int64    `json:"status_codes"`
	AvgLatency      time.Duration    `json:"avg_latency"`
	P50Latency      time.Duration    `json:"p50_latency"`
	P95Latency      time.Duration    `json:"p95_latency"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		calls:           make(map[string]int64),
		successes:       make(map[string]int64),
		attempts:        make(map[string]int64),
		transportErrors: make(map[string]int64),
		failures:        make(map[string]map[string]int64),
		statusCodes:     make(map[string]map[int]int64),
		latencies:       make(map[string][]time.Duration),
		startTime:       time.Now(),
	}
}

// RecordAttempt counts one HTTP exchange. A zero status code is a transport error.
func (m *Metrics) RecordAttempt(operation string, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.attempts[operation]++

	if statusCode == 0 {
		m.transportErrors[operation]++
		return
	}

	if m.statusCodes[operation] == nil {
		m.statusCodes[operation] = make(map[int]int64)
	}
	m.statusCodes[operation][statusCode]++
}

// RecordOutcome counts one finished call. An empty kind is a success.
func (m *Metrics) RecordOutcome(operation string, duration time.Duration, kind string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.calls[operation]++

	m.latencies[operation] = append(m.latencies[operation], duration)
	if len(m.latencies[operation]) > maxLatencySamples {
		m.latencies[operation] = m.latencies[operation][1:]
	}

	if kind == "" {
		m.successes[operation]++
		return
	}

	if m.failures[operation] == nil {
		m.failures[operation] = make(map[string]int64)
	}
	m.failures[operation][kind]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:     time.Since(m.startTime),
		Operations: make(map[string]OperationMetrics),
	}

	ops := make(map[string]struct{})
	for op := range m.calls {
		ops[op] = struct{}{}
	}
	for op := range m.attempts {
		ops[op] = struct{}{}
	}

	for op := range ops {
		snap.TotalCalls += m.calls[op]

		om := OperationMetrics{
			Calls:           m.calls[op],
			Successes:       m.successes[op],
			Attempts:        m.attempts[op],
			TransportErrors: m.transportErrors[op],
			Failures:        copyMap(m.failures[op]),
			StatusCodes:     copyMap(m.statusCodes[op]),
		}

		if durations := m.latencies[op]; len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			om.AvgLatency = average(sorted)
			om.P50Latency = percentile(sorted, 0.50)
			om.P95Latency = percentile(sorted, 0.95)
		}

		snap.Operations[op] = om
	}

	return snap
}

func copyMap[K comparable](src map[K]int64) map[K]int64 {
	dst := make(map[K]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
