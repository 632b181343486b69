package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

const namespace = "clinic"

// Collector holds the service metrics. A nil *Collector records nothing.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	AppointmentsTotal    *prometheus.CounterVec
	RejectionsTotal      *prometheus.CounterVec
	RescheduledTotal     prometheus.Counter
	StoreLockWaitSeconds *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewCollector registers the metrics on reg. Tests pass a fresh prometheus.NewRegistry().
func NewCollector(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),

		AppointmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "appointments_total",
			Help:      "Committed appointment writes by operation.",
		}, []string{"operation"}),

		RejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "timeframe_rejections_total",
			Help:      "Candidate timeframes rejected by the validator, by reason.",
		}, []string{"reason"}),

		RescheduledTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "rescheduled_total",
			Help:      "Appointments moved by mass reschedule runs.",
		}),

		StoreLockWaitSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for the store-wide write lock.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"operation"}),

		gatherer: reg,
	}
}

func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) IncAppointments(operation string) {
	if c == nil {
		return
	}
	c.AppointmentsTotal.WithLabelValues(operation).Inc()
}

// ObserveRejection counts err when it is a timeframe validation failure.
func (c *Collector) ObserveRejection(err error) {
	if c == nil {
		return
	}
	var verr *schedule.ValidationError
	if errors.As(err, &verr) {
		c.RejectionsTotal.WithLabelValues(string(verr.Reason)).Inc()
	}
}

func (c *Collector) IncRescheduled() {
	if c == nil {
		return
	}
	c.RescheduledTotal.Inc()
}

func (c *Collector) ObserveLockWait(operation string, d time.Duration) {
	if c == nil {
		return
	}
	c.StoreLockWaitSeconds.WithLabelValues(operation).Observe(d.Seconds())
}

// Handler serves the metrics registered on this collector.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
