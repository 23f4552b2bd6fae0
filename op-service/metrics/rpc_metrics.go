package metrics

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

const RPCClientSubsystem = "rpc_client"

// RPCMetricer records outgoing RPC requests.
// RecordRPCClientRequest returns a callback to invoke with the result of the request.
type RPCMetricer interface {
	RecordRPCClientRequest(method string) func(err error)
}

// RPCMetrics tracks outgoing RPC requests by method.
type RPCMetrics struct {
	clientRequestsTotal          *prometheus.CounterVec
	clientRequestDurationSeconds *prometheus.HistogramVec
	clientResponsesTotal         *prometheus.CounterVec
}

var _ RPCMetricer = (*RPCMetrics)(nil)

// MakeRPCMetrics creates a new RPCMetrics with the given namespace.
// This struct is intended to be embedded into the larger metrics struct.
func MakeRPCMetrics(ns string, factory Factory) RPCMetrics {
	return RPCMetrics{
		clientRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: RPCClientSubsystem,
			Name:      "requests_total",
			Help:      "Total RPC requests initiated",
		}, []string{
			"method",
		}),
		clientRequestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: RPCClientSubsystem,
			Name:      "request_duration_seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			Help:      "Histogram of RPC client request durations",
		}, []string{
			"method",
		}),
		clientResponsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: RPCClientSubsystem,
			Name:      "responses_total",
			Help:      "Total RPC request responses received",
		}, []string{
			"method",
			"error",
		}),
	}
}

func (m *RPCMetrics) RecordRPCClientRequest(method string) func(err error) {
	m.clientRequestsTotal.WithLabelValues(method).Inc()
	timer := prometheus.NewTimer(m.clientRequestDurationSeconds.WithLabelValues(method))
	return func(err error) {
		timer.ObserveDuration()
		m.clientResponsesTotal.WithLabelValues(method, errorLabel(err)).Inc()
	}
}

// errorLabel maps an RPC error to a low-cardinality label: "<nil>", "rpc_<code>" or "unknown".
func errorLabel(err error) string {
	if err == nil {
		return "<nil>"
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Sprintf("rpc_%d", rpcErr.ErrorCode())
	}
	return "unknown"
}

type NoopRPCMetrics struct{}

func (n *NoopRPCMetrics) RecordRPCClientRequest(method string) func(err error) {
	return func(err error) {}
}

var _ RPCMetricer = (*NoopRPCMetrics)(nil)
