package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgen",
		Subsystem: "scheduler",
		Name:      "queue_depth",
		Help:      "Requests waiting for a backend slot",
	})

	runningGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgen",
		Subsystem: "scheduler",
		Name:      "running_sessions",
		Help:      "Backend sessions currently holding a concurrency slot",
	})

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamgen",
			Subsystem: "scheduler",
			Name:      "requests_total",
			Help:      "Finished generation requests by terminal status",
		},
		[]string{"status"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamgen",
			Subsystem: "scheduler",
			Name:      "rejections_total",
			Help:      "Submissions rejected before queuing",
		},
		[]string{"reason"},
	)

	interruptTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamgen",
		Subsystem: "scheduler",
		Name:      "interrupt_timeouts_total",
		Help:      "Cancelled sessions whose slot was reclaimed before the backend acknowledged",
	})

	queueWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "streamgen",
		Subsystem: "scheduler",
		Name:      "queue_wait_seconds",
		Help:      "Time between submission and admission",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	deliveredBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamgen",
		Subsystem: "stream",
		Name:      "delivered_bytes_total",
		Help:      "Bytes of generated text forwarded to consumers",
	})
)

func init() {
	prometheus.MustRegister(queueDepthGauge, runningGauge, requestsTotal, rejectionsTotal,
		interruptTimeoutsTotal, queueWaitSeconds, deliveredBytesTotal)
}

func rejectReason(err error) string {
	switch {
	case IsValidation(err):
		return "validation"
	case IsCapacityExceeded(err):
		return "capacity"
	case IsShuttingDown(err):
		return "shutdown"
	default:
		return "other"
	}
}
