package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shop"

// Registry owns one prometheus registry per process so tests can build as
// many as they like without colliding on the default registerer.
type Registry struct {
	reg     *prometheus.Registry
	service string

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	CheckoutOutcomes *prometheus.CounterVec
	CheckoutDuration prometheus.Histogram
	CollaboratorCall *prometheus.HistogramVec
}

func NewRegistry(service string) *Registry {
	r := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "Total HTTP requests.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   "http",
		Name:        "request_duration_seconds",
		Help:        "HTTP request duration in seconds.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "route", "status"})
	checkoutOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "checkout",
		Name:        "outcomes_total",
		Help:        "Checkout attempts by terminal step and error kind.",
		ConstLabels: constLabels,
	}, []string{"step", "kind"})
	checkoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   "checkout",
		Name:        "duration_seconds",
		Help:        "Wall time of a checkout attempt.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	})
	collaboratorCall := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   "collaborator",
		Name:        "call_duration_seconds",
		Help:        "Latency of calls to remote collaborators.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"collaborator", "operation", "success"})

	r.MustRegister(
		httpRequests, httpDuration, checkoutOutcomes, checkoutDuration, collaboratorCall,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		reg:              r,
		service:          service,
		HTTPRequests:     httpRequests,
		HTTPDuration:     httpDuration,
		CheckoutOutcomes: checkoutOutcomes,
		CheckoutDuration: checkoutDuration,
		CollaboratorCall: collaboratorCall,
	}
}

func (r *Registry) Service() string { return r.service }

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveCheckout records the end of one checkout attempt. A nil registry is
// accepted so callers can run without metrics.
func (r *Registry) ObserveCheckout(step, kind string, took time.Duration) {
	if r == nil {
		return
	}
	r.CheckoutOutcomes.WithLabelValues(step, kind).Inc()
	r.CheckoutDuration.Observe(took.Seconds())
}

func (r *Registry) ObserveCall(collaborator, operation string, ok bool, took time.Duration) {
	if r == nil {
		return
	}
	success := "false"
	if ok {
		success = "true"
	}
	r.CollaboratorCall.WithLabelValues(collaborator, operation, success).Observe(took.Seconds())
}
