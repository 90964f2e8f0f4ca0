package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	analysisSubmittedTotal atomic.Uint64
	analysisSucceededTotal atomic.Uint64
	analysisFailedTotal    atomic.Uint64
	analysisNotFoundTotal  atomic.Uint64
	analysisTimedOutTotal  atomic.Uint64
	upstreamErrorsTotal    atomic.Uint64
	credentialsIssuedTotal atomic.Uint64

	pollAttempts = newHistogram([]float64{1, 2, 3, 5, 10, 20, 30})
)

// IncAnalysisSubmitted counts accepted submissions.
func IncAnalysisSubmitted() { analysisSubmittedTotal.Add(1) }

// IncAnalysisSucceeded counts jobs that finished with a result.
func IncAnalysisSucceeded() { analysisSucceededTotal.Add(1) }

// IncAnalysisFailed counts jobs the service reported as failed or canceled.
func IncAnalysisFailed() { analysisFailedTotal.Add(1) }

// IncAnalysisNotFound counts jobs that disappeared while polling.
func IncAnalysisNotFound() { analysisNotFoundTotal.Add(1) }

// IncAnalysisTimedOut counts jobs still pending after the attempt ceiling.
func IncAnalysisTimedOut() { analysisTimedOutTotal.Add(1) }

// IncUpstreamError counts rejected submissions and failed polls.
func IncUpstreamError() { upstreamErrorsTotal.Add(1) }

// IncCredentialsIssued counts upload credential pairs handed out.
func IncCredentialsIssued() { credentialsIssuedTotal.Add(1) }

// ObservePollAttempts records how many polls a job needed before it stopped.
func ObservePollAttempts(n int) {
	if n < 0 {
		n = 0
	}
	pollAttempts.Observe(float64(n))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_submitted_total", "Total analyses accepted by the service", analysisSubmittedTotal.Load())
	writeCounter(&buf, "analysis_succeeded_total", "Total analyses that succeeded", analysisSucceededTotal.Load())
	writeCounter(&buf, "analysis_failed_total", "Total analyses failed or canceled by the service", analysisFailedTotal.Load())
	writeCounter(&buf, "analysis_not_found_total", "Total analyses whose operation was not found", analysisNotFoundTotal.Load())
	writeCounter(&buf, "analysis_timed_out_total", "Total analyses still pending at the attempt ceiling", analysisTimedOutTotal.Load())
	writeCounter(&buf, "upstream_errors_total", "Total upstream rejections and poll failures", upstreamErrorsTotal.Load())
	writeCounter(&buf, "upload_credentials_issued_total", "Total upload credential pairs issued", credentialsIssuedTotal.Load())
	writeHistogram(&buf, "analysis_poll_attempts", "Poll attempts per analysis", pollAttempts.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe adds value to the first bucket whose bound it fits; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
