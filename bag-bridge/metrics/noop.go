package metrics

import (
	opmetrics "github.com/bag-token/blast-bridge/op-service/metrics"
	txmetrics "github.com/bag-token/blast-bridge/op-service/txmgr/metrics"
)

type noopMetrics struct {
	txmetrics.NoopTxMetrics
	opmetrics.NoopRPCMetrics
}

var NoopMetrics Metricer = new(noopMetrics)

func (*noopMetrics) Document() []opmetrics.DocumentedMetric { return nil }

func (*noopMetrics) RecordInfo(version string) {}
func (*noopMetrics) RecordUp()                 {}

func (*noopMetrics) RecordOperation(string) func(error) {
	return func(error) {}
}

func (*noopMetrics) RecordTransition(string, string) {}
