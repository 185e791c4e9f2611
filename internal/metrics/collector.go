package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the Prometheus instruments for the question answering
// workflow and the HTTP surface. All methods are safe on a nil receiver
// so callers can run without metrics.
type Collector struct {
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram

	routingDecisions *prometheus.CounterVec

	agentExecutions *prometheus.CounterVec
	agentDuration   *prometheus.HistogramVec
	degradedFolds   *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector registers the instruments with the default registry.
// Call at most once per process.
func NewCollector(namespace string) *Collector {
	return NewCollectorWith(namespace, prometheus.DefaultRegisterer)
}

// NewCollectorWith registers the instruments with the given registerer.
func NewCollectorWith(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of question answering runs",
			},
			[]string{"status"}, // completed, failed, cancelled
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "End-to-end run duration in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		routingDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routing_decisions_total",
				Help:      "Total routing decisions by the coordinator",
			},
			[]string{"decision"},
		),
		agentExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_executions_total",
				Help:      "Total agent executions",
			},
			[]string{"agent", "status"}, // status: ok, error
		),
		agentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "agent_execution_duration_seconds",
				Help:      "Agent execution duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"agent"},
		),
		degradedFolds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "degraded_folds_total",
				Help:      "Agent failures folded into the run as empty evidence",
			},
			[]string{"agent"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RunCompleted records a finished run.
func (c *Collector) RunCompleted(status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(elapsed.Seconds())
}

// Decision records a coordinator routing decision.
func (c *Collector) Decision(decision string) {
	if c == nil {
		return
	}
	c.routingDecisions.WithLabelValues(decision).Inc()
}

// AgentExecution records one agent dispatch.
func (c *Collector) AgentExecution(agent string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.agentExecutions.WithLabelValues(agent, status).Inc()
	c.agentDuration.WithLabelValues(agent).Observe(elapsed.Seconds())
}

// DegradedFold records an agent failure recovered as empty evidence.
func (c *Collector) DegradedFold(agent string) {
	if c == nil {
		return
	}
	c.degradedFolds.WithLabelValues(agent).Inc()
}

// HTTPRequest records one served HTTP request.
func (c *Collector) HTTPRequest(method, path string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
