// Package metrics instruments the reactor and node layers with
// Prometheus vectors, grounded on the teacher's
// memcached/metrics.go (a single HistogramVec keyed by method name
// and success flag). Expanded with a node queue-depth gauge and a
// reconnect counter, since this client's domain stack (per-node
// queues, reconnect backoff) gives those two a natural home that the
// teacher's synchronous pooled client never had.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	opLabel      = "op"
	successLabel = "success"
	nodeLabel    = "node"
	queueLabel   = "queue"
)

var (
	// OperationDuration observes how long an operation took from
	// submission to Future completion.
	OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "gomemcache_operation_duration_seconds",
		Help: "duration of memcache operations from submission to completion",
		Buckets: []float64{
			0.0005, 0.001, 0.005, 0.007, 0.015, 0.05, 0.1, 0.2, 0.5, 1,
		},
	}, []string{opLabel, successLabel})

	// NodeQueueDepth reports the current length of a node's input,
	// write, and read queues, sampled once per reactor tick.
	NodeQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gomemcache_node_queue_depth",
		Help: "current depth of a node's input/write/read queue",
	}, []string{nodeLabel, queueLabel})

	// Reconnects counts every time a node reestablishes a lost
	// connection.
	Reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gomemcache_reconnects_total",
		Help: "total reconnect attempts that succeeded per node",
	}, []string{nodeLabel})
)

// ObserveOperation records one completed operation's duration.
func ObserveOperation(op string, durationSeconds float64, success bool) {
	flag := "0"
	if success {
		flag = "1"
	}
	OperationDuration.WithLabelValues(op, flag).Observe(durationSeconds)
}

// SetQueueDepth records a node's current queue lengths.
func SetQueueDepth(node string, input, write, read int) {
	NodeQueueDepth.WithLabelValues(node, "input").Set(float64(input))
	NodeQueueDepth.WithLabelValues(node, "write").Set(float64(write))
	NodeQueueDepth.WithLabelValues(node, "read").Set(float64(read))
}

// IncReconnect records a successful reconnect for node.
func IncReconnect(node string) {
	Reconnects.WithLabelValues(node).Inc()
}

// MustRegister registers every vector with r. Callers that embed this
// client in a service with its own registry call this once at
// startup; it is not called automatically so importing this package
// never has global side effects.
func MustRegister(r prometheus.Registerer) {
	r.MustRegister(OperationDuration, NodeQueueDepth, Reconnects)
}
