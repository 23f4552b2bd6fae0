package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	opmetrics "github.com/bag-token/blast-bridge/op-service/metrics"
	txmetrics "github.com/bag-token/blast-bridge/op-service/txmgr/metrics"
)

const Namespace = "bag_bridge"

type Metricer interface {
	RecordInfo(version string)
	RecordUp()

	// RecordOperation returns a callback to invoke with the result of the withdrawal operation.
	RecordOperation(op string) func(err error)
	RecordTransition(from, to string)

	opmetrics.RPCMetricer
	txmetrics.TxMetricer

	Document() []opmetrics.DocumentedMetric
}

type Metrics struct {
	ns       string
	registry *prometheus.Registry
	factory  opmetrics.Factory

	txmetrics.TxMetrics
	opmetrics.RPCMetrics

	info *prometheus.GaugeVec
	up   prometheus.Gauge

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	transitions       *prometheus.CounterVec
	state             *prometheus.GaugeVec
}

var (
	_ Metricer                   = (*Metrics)(nil)
	_ opmetrics.RegistryMetricer = (*Metrics)(nil)
)

func NewMetrics(procName string) *Metrics {
	ns := Namespace
	if procName != "" {
		ns += "_" + procName
	}
	registry := opmetrics.NewRegistry()
	factory := opmetrics.With(registry)
	return &Metrics{
		ns:       ns,
		registry: registry,
		factory:  factory,

		TxMetrics:  txmetrics.MakeTxMetrics(ns, factory),
		RPCMetrics: opmetrics.MakeRPCMetrics(ns, factory),

		info: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "info",
			Help:      "Pseudo-metric tracking version and config info",
		}, []string{
			"version",
		}),
		up: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "up",
			Help:      "1 if the bridge watcher has finished starting up",
		}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "operations_total",
			Help:      "Withdrawal operations by result",
		}, []string{
			"op",
			"result",
		}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "operation_duration_seconds",
			Help:      "Duration of withdrawal operations, including confirmation waits",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 900},
		}, []string{
			"op",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "transitions_total",
			Help:      "Withdrawal state transitions",
		}, []string{
			"from",
			"to",
		}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "state",
			Help:      "1 for the last observed withdrawal state",
		}, []string{
			"state",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Document() []opmetrics.DocumentedMetric {
	return m.factory.Document()
}

// RecordInfo sets a pseudo-metric that contains versioning and config info.
func (m *Metrics) RecordInfo(version string) {
	m.info.WithLabelValues(version).Set(1)
}

// RecordUp sets the up metric to 1.
func (m *Metrics) RecordUp() {
	m.up.Set(1)
}

func (m *Metrics) RecordOperation(op string) func(err error) {
	start := time.Now()
	return func(err error) {
		m.operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		result := "success"
		if err != nil {
			result = "error"
		}
		m.operations.WithLabelValues(op, result).Inc()
	}
}

func (m *Metrics) RecordTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
	m.state.WithLabelValues(from).Set(0)
	m.state.WithLabelValues(to).Set(1)
}
