package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countRunsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_runs_in_queue",
	Help: "Number of workflow runs in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start a worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var chunksEmbedded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chunks_embedded_total",
	Help: "Chunk embedding outcomes labelled by status",
}, []string{"status"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) CaptureWriteHeaderMetrics(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementRunsInQueue() {
	countRunsInQueue.Inc()
}

func DecrementRunsInQueue() {
	countRunsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func CountChunkOutcome(status string) {
	chunksEmbedded.WithLabelValues(status).Inc()
}

var runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "workflow_run_duration_seconds",
	Help:    "Total time spent executing a workflow run.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60},
}, []string{"state"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureRunMetrics(state string, timeElapsed time.Duration) {
	runDuration.WithLabelValues(state).Observe(timeElapsed.Seconds())
}
