package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder on top of a Prometheus registry.
type PrometheusRecorder struct {
	queueWait          *prometheus.HistogramVec
	verifications      *prometheus.CounterVec
	orderTransitions   *prometheus.CounterVec
	resolverIterations prometheus.Histogram
}

// NewPrometheusRecorder creates a recorder and registers its collectors with
// the given registerer.
//
// Parameters:
// - reg: the Prometheus registerer; prometheus.DefaultRegisterer is a common choice.
//
// Returns:
// - *PrometheusRecorder: a new PrometheusRecorder instance.
// - error: an error if collector registration fails.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		queueWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paycore",
			Name:      "rpc_queue_wait_seconds",
			Help:      "Time requests spend queued before dispatch, per chain.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"chain"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paycore",
			Name:      "verifications_total",
			Help:      "Verification outcomes by chain and reason.",
		}, []string{"chain", "reason"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paycore",
			Name:      "order_transitions_total",
			Help:      "Order reconciliation state transitions.",
		}, []string{"from", "to"}),
		resolverIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "paycore",
			Name:      "rate_resolver_iterations",
			Help:      "Quote iterations used per reverse rate resolution.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
	}

	collectors := []prometheus.Collector{
		r.queueWait,
		r.verifications,
		r.orderTransitions,
		r.resolverIterations,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *PrometheusRecorder) ObserveQueueWait(chainKey string, wait time.Duration) {
	r.queueWait.WithLabelValues(chainKey).Observe(wait.Seconds())
}

func (r *PrometheusRecorder) IncVerification(chainKey string, reason string) {
	if reason == "" {
		reason = "verified"
	}
	r.verifications.WithLabelValues(chainKey, reason).Inc()
}

func (r *PrometheusRecorder) IncOrderTransition(from, to string) {
	r.orderTransitions.WithLabelValues(from, to).Inc()
}

func (r *PrometheusRecorder) ObserveResolverIterations(iterations int) {
	r.resolverIterations.Observe(float64(iterations))
}
