// Package metrics collects counters for a probing run.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// histogram bucket upper bounds in milliseconds; the last bucket is open.
var bucketBounds = [...]int64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

const numBuckets = len(bucketBounds) + 1

// Collector collects and aggregates probe metrics.
type Collector struct {
	requestsTotal atomic.Int64
	errorsTotal   atomic.Int64
	reachable     atomic.Int64
	unreachable   atomic.Int64
	skipped       atomic.Int64
	outOfScope    atomic.Int64
	authAttempts  atomic.Int64
	authFailures  atomic.Int64

	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64

	responseTimeBuckets [numBuckets]atomic.Int64

	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	statusCodes map[int]*atomic.Int64
	statusMu    sync.RWMutex

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		errorCounts: make(map[string]*atomic.Int64),
		statusCodes: make(map[int]*atomic.Int64),
		startTime:   time.Now(),
	}
}

// RecordRequest records a probe request.
func (c *Collector) RecordRequest() {
	c.requestsTotal.Add(1)
}

// RecordError records a transport error by type.
func (c *Collector) RecordError(errorType string) {
	c.errorsTotal.Add(1)

	c.errorMu.Lock()
	if c.errorCounts[errorType] == nil {
		c.errorCounts[errorType] = &atomic.Int64{}
	}
	c.errorCounts[errorType].Add(1)
	c.errorMu.Unlock()
}

// RecordResponseTime records a response time.
func (c *Collector) RecordResponseTime(d time.Duration) {
	ms := d.Milliseconds()
	c.responseTimesSum.Add(ms)
	c.responseTimesNum.Add(1)
	c.responseTimeBuckets[bucket(ms)].Add(1)
}

func bucket(ms int64) int {
	for i, bound := range bucketBounds {
		if ms < bound {
			return i
		}
	}
	return numBuckets - 1
}

// RecordStatusCode records an HTTP status code.
func (c *Collector) RecordStatusCode(code int) {
	c.statusMu.Lock()
	if c.statusCodes[code] == nil {
		c.statusCodes[code] = &atomic.Int64{}
	}
	c.statusCodes[code].Add(1)
	c.statusMu.Unlock()
}

// RecordReachable increments reachable endpoints.
func (c *Collector) RecordReachable() {
	c.reachable.Add(1)
}

// RecordUnreachable increments unreachable endpoints.
func (c *Collector) RecordUnreachable() {
	c.unreachable.Add(1)
}

// RecordSkipped increments endpoints skipped for wildcard paths.
func (c *Collector) RecordSkipped() {
	c.skipped.Add(1)
}

// RecordOutOfScope increments endpoints excluded by scope rules.
func (c *Collector) RecordOutOfScope() {
	c.outOfScope.Add(1)
}

// RecordAuth records an authorization attempt.
func (c *Collector) RecordAuth(success bool) {
	c.authAttempts.Add(1)
	if !success {
		c.authFailures.Add(1)
	}
}

// GetAverageResponseTime returns the average response time.
func (c *Collector) GetAverageResponseTime() time.Duration {
	sum := c.responseTimesSum.Load()
	num := c.responseTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Millisecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.startTime),
		RequestsTotal:       c.requestsTotal.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
		Reachable:           c.reachable.Load(),
		Unreachable:         c.unreachable.Load(),
		Skipped:             c.skipped.Load(),
		OutOfScope:          c.outOfScope.Load(),
		AuthAttempts:        c.authAttempts.Load(),
		AuthFailures:        c.authFailures.Load(),
		AverageResponseTime: c.GetAverageResponseTime(),
		ErrorCounts:         make(map[string]int64),
		StatusCodes:         make(map[int]int64),
		ResponseTimeHist:    make([]int64, numBuckets),
	}

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v.Load()
	}
	c.errorMu.RUnlock()

	c.statusMu.RLock()
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v.Load()
	}
	c.statusMu.RUnlock()

	for i := range c.responseTimeBuckets {
		s.ResponseTimeHist[i] = c.responseTimeBuckets[i].Load()
	}

	return s
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp           time.Time        `json:"timestamp"`
	Uptime              time.Duration    `json:"uptime"`
	RequestsTotal       int64            `json:"requests_total"`
	ErrorsTotal         int64            `json:"errors_total"`
	Reachable           int64            `json:"reachable"`
	Unreachable         int64            `json:"unreachable"`
	Skipped             int64            `json:"skipped"`
	OutOfScope          int64            `json:"out_of_scope"`
	AuthAttempts        int64            `json:"auth_attempts"`
	AuthFailures        int64            `json:"auth_failures"`
	AverageResponseTime time.Duration    `json:"average_response_time"`
	ErrorCounts         map[string]int64 `json:"error_counts"`
	StatusCodes         map[int]int64    `json:"status_codes"`
	ResponseTimeHist    []int64          `json:"response_time_histogram"`
}

// ErrorRate returns errors per request.
func (s *Snapshot) ErrorRate() float64 {
	if s.RequestsTotal == 0 {
		return 0
	}
	return float64(s.ErrorsTotal) / float64(s.RequestsTotal)
}

// SortedStatusCodes returns the observed status codes in ascending order.
func (s *Snapshot) SortedStatusCodes() []int {
	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// Summary returns a flat view for logging.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":               s.Uptime.String(),
		"requests_total":       s.RequestsTotal,
		"errors_total":         s.ErrorsTotal,
		"error_rate":           s.ErrorRate(),
		"reachable":            s.Reachable,
		"unreachable":          s.Unreachable,
		"skipped":              s.Skipped,
		"out_of_scope":         s.OutOfScope,
		"avg_response_time_ms": s.AverageResponseTime.Milliseconds(),
	}
}
