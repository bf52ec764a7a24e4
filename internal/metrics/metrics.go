// Package metrics exposes Prometheus metrics derived from eventbus events:
// HTTP requests, GraphQL operations, loader batches and domain calls.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanpama/portalgraph/internal/eventbus"
	"github.com/hanpama/portalgraph/internal/events"
)

const namespace = "portalgraph"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	operations    *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	batches       *prometheus.CounterVec
	batchSize     *prometheus.HistogramVec
	batchMisses   *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	grpcCalls     *prometheus.CounterVec
	grpcDuration  *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, along with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "operations_total",
			Help: "GraphQL operations by type and outcome.",
		}, []string{"type", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "operation_duration_seconds",
			Help: "GraphQL operation latency.", Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "loader", Name: "batches_total",
			Help: "Batches dispatched to the domain service layer by entity and outcome.",
		}, []string{"entity", "outcome"}),
		batchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "loader", Name: "batch_size",
			Help: "Ids per dispatched batch.", Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"entity"}),
		batchMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "loader", Name: "misses_total",
			Help: "Ids the domain service layer did not return.",
		}, []string{"entity"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "loader", Name: "batch_duration_seconds",
			Help: "Batch call latency.", Buckets: prometheus.DefBuckets,
		}, []string{"entity"}),
		grpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "grpc_client", Name: "calls_total",
			Help: "Domain service calls by service, method and status code.",
		}, []string{"service", "method", "code"}),
		grpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "grpc_client", Name: "call_duration_seconds",
			Help: "Domain service call latency.", Buckets: prometheus.DefBuckets,
		}, []string{"service", "method"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.operations, m.opDuration,
		m.batches, m.batchSize, m.batchMisses, m.batchDuration,
		m.grpcCalls, m.grpcDuration,
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Subscribe attaches m to the global bus and returns a function detaching it.
func (m *Metrics) Subscribe() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			m.httpRequests.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Inc()
			m.httpDuration.WithLabelValues(e.Request.Method).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) {
			m.operations.WithLabelValues(e.OperationType, outcome(len(e.Errors) == 0)).Inc()
			m.opDuration.WithLabelValues(e.OperationType).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.LoaderBatch) {
			m.batches.WithLabelValues(e.Loader, outcome(e.Err == nil)).Inc()
			m.batchSize.WithLabelValues(e.Loader).Observe(float64(e.Size))
			m.batchDuration.WithLabelValues(e.Loader).Observe(e.Duration.Seconds())
			if e.Err == nil && e.Size > e.Found {
				m.batchMisses.WithLabelValues(e.Loader).Add(float64(e.Size - e.Found))
			}
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GRPCClientFinish) {
			m.grpcCalls.WithLabelValues(e.Service, e.Method, e.Code.String()).Inc()
			m.grpcDuration.WithLabelValues(e.Service, e.Method).Observe(e.Duration.Seconds())
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
