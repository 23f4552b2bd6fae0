package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"

	opmetrics "github.com/bag-token/blast-bridge/op-service/metrics"
)

type TxMetricer interface {
	RecordNonce(uint64)
	RecordTipCap(*big.Int)
	RecordBaseFee(*big.Int)
	TxConfirmed(*types.Receipt)
	TxPublished(string)
}

type TxMetrics struct {
	currentNonce     prometheus.Gauge
	txFees           prometheus.Counter
	txFeesGwei       prometheus.Histogram
	txGasUsed        prometheus.Histogram
	tipCap           prometheus.Gauge
	baseFee          prometheus.Gauge
	txReverted       prometheus.Counter
	publishEvent     *prometheus.CounterVec
	confirmedByState *prometheus.CounterVec
}

func receiptStatusString(receipt *types.Receipt) string {
	switch receipt.Status {
	case types.ReceiptStatusSuccessful:
		return "success"
	case types.ReceiptStatusFailed:
		return "failed"
	default:
		return "unknown_status"
	}
}

const TxMetricSubsystem = "txmgr"

func MakeTxMetrics(ns string, factory opmetrics.Factory) TxMetrics {
	return TxMetrics{
		currentNonce: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "current_nonce",
			Help:      "Current nonce of the from address",
			Subsystem: TxMetricSubsystem,
		}),
		txFees: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tx_fee_gwei_total",
			Help:      "Sum of fees spent for all transactions in GWei",
			Subsystem: TxMetricSubsystem,
		}),
		txFeesGwei: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "tx_fee_histogram_gwei",
			Help:      "Tx Fee in GWEI",
			Subsystem: TxMetricSubsystem,
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 80, 100, 200, 400, 800, 1600},
		}),
		txGasUsed: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "tx_gas_used",
			Help:      "Gas used by confirmed transactions",
			Subsystem: TxMetricSubsystem,
			Buckets:   prometheus.ExponentialBuckets(21000, 2, 8),
		}),
		tipCap: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "tipcap_gwei",
			Help:      "Latest tip cap in gwei",
			Subsystem: TxMetricSubsystem,
		}),
		baseFee: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "basefee_gwei",
			Help:      "Latest base fee in gwei",
			Subsystem: TxMetricSubsystem,
		}),
		txReverted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tx_reverted_total",
			Help:      "Count of confirmed transactions that reverted",
			Subsystem: TxMetricSubsystem,
		}),
		publishEvent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "publish_total",
			Help:      "Count of publish attempts, by error",
			Subsystem: TxMetricSubsystem,
		}, []string{"error"}),
		confirmedByState: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "confirm_total",
			Help:      "Count of confirmed transactions, by receipt status",
			Subsystem: TxMetricSubsystem,
		}, []string{"status"}),
	}
}

func (t *TxMetrics) RecordNonce(nonce uint64) {
	t.currentNonce.Set(float64(nonce))
}

func (t *TxMetrics) RecordTipCap(tip *big.Int) {
	t.tipCap.Set(weiToGwei(tip))
}

func (t *TxMetrics) RecordBaseFee(baseFee *big.Int) {
	t.baseFee.Set(weiToGwei(baseFee))
}

// TxConfirmed records fee and gas use of a confirmed transaction.
func (t *TxMetrics) TxConfirmed(receipt *types.Receipt) {
	if receipt.EffectiveGasPrice != nil {
		fee := weiToGwei(new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed)))
		t.txFees.Add(fee)
		t.txFeesGwei.Observe(fee)
	}
	t.txGasUsed.Observe(float64(receipt.GasUsed))
	if receipt.Status == types.ReceiptStatusFailed {
		t.txReverted.Inc()
	}
	t.confirmedByState.WithLabelValues(receiptStatusString(receipt)).Inc()
}

func (t *TxMetrics) TxPublished(errString string) {
	if errString == "" {
		errString = "none"
	}
	t.publishEvent.WithLabelValues(errString).Inc()
}

func weiToGwei(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(params.GWei)).Float64()
	return f
}

type NoopTxMetrics struct{}

func (*NoopTxMetrics) RecordNonce(uint64)         {}
func (*NoopTxMetrics) RecordTipCap(*big.Int)      {}
func (*NoopTxMetrics) RecordBaseFee(*big.Int)     {}
func (*NoopTxMetrics) TxConfirmed(*types.Receipt) {}
func (*NoopTxMetrics) TxPublished(string)         {}

var (
	_ TxMetricer = (*TxMetrics)(nil)
	_ TxMetricer = (*NoopTxMetrics)(nil)
)
