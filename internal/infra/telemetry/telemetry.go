package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kether"

// Metrics holds the domain collectors. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	authAttempts       *prometheus.CounterVec
	rateLimitDecisions *prometheus.CounterVec
	ledgerCredited     *prometheus.CounterVec
	payoutDecisions    *prometheus.CounterVec
	reserveHeadroom    prometheus.Gauge
	reconciliations    *prometheus.CounterVec
	suspiciousFlags    prometheus.Counter
	chainRPCDuration   *prometheus.HistogramVec
	degradedOperations *prometheus.CounterVec
}

// NewMetrics registers the domain collectors with reg, reusing collectors that are already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}
	var err error

	if m.authAttempts, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "attempts_total",
		Help:      "Wallet sign-in attempts partitioned by outcome.",
	}, "outcome"); err != nil {
		return nil, err
	}

	if m.rateLimitDecisions, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rate_limit",
		Name:      "decisions_total",
		Help:      "Rate limit decisions partitioned by action class and outcome.",
	}, "class", "outcome"); err != nil {
		return nil, err
	}

	if m.ledgerCredited, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "credited_points_total",
		Help:      "Points credited to the ledger partitioned by entry kind.",
	}, "kind"); err != nil {
		return nil, err
	}

	if m.payoutDecisions, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reserve",
		Name:      "payout_decisions_total",
		Help:      "Payout authorization decisions partitioned by outcome.",
	}, "outcome"); err != nil {
		return nil, err
	}

	headroom := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "reserve",
		Name:      "headroom_tokens",
		Help:      "Last observed reserve headroom in whole tokens.",
	})
	if err := reg.Register(headroom); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register headroom collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(prometheus.Gauge)
		if !ok {
			return nil, fmt.Errorf("existing headroom collector has unexpected type %T", already.ExistingCollector)
		}
		headroom = existing
	}
	m.reserveHeadroom = headroom

	if m.reconciliations, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciliation",
		Name:      "checks_total",
		Help:      "Ledger to chain reconciliation checks partitioned by result.",
	}, "result"); err != nil {
		return nil, err
	}

	flags := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "security",
		Name:      "suspicious_ips_flagged_total",
		Help:      "IP addresses flagged after repeated unauthorized admin attempts.",
	})
	if err := reg.Register(flags); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register suspicious flags collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(prometheus.Counter)
		if !ok {
			return nil, fmt.Errorf("existing suspicious flags collector has unexpected type %T", already.ExistingCollector)
		}
		flags = existing
	}
	m.suspiciousFlags = flags

	rpc := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "rpc_duration_seconds",
		Help:      "Latency of blockchain RPC calls partitioned by method and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "outcome"})
	if err := reg.Register(rpc); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register chain rpc collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("existing chain rpc collector has unexpected type %T", already.ExistingCollector)
		}
		rpc = existing
	}
	m.chainRPCDuration = rpc

	if m.degradedOperations, err = registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "degraded_operations_total",
		Help:      "Operations that continued or failed because a backing store was unavailable.",
	}, "operation", "mode"); err != nil {
		return nil, err
	}

	return m, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
	}
	return vec, nil
}

func (m *Metrics) AuthAttempt(outcome string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RateLimitDecision(class string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.rateLimitDecisions.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) LedgerCredited(kind string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.ledgerCredited.WithLabelValues(kind).Add(float64(amount))
}

func (m *Metrics) PayoutDecision(outcome string) {
	if m == nil {
		return
	}
	m.payoutDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReserveHeadroom(tokens float64) {
	if m == nil {
		return
	}
	m.reserveHeadroom.Set(tokens)
}

func (m *Metrics) Reconciliation(consistent bool) {
	if m == nil {
		return
	}
	result := "consistent"
	if !consistent {
		result = "mismatch"
	}
	m.reconciliations.WithLabelValues(result).Inc()
}

func (m *Metrics) SuspiciousIPFlagged() {
	if m == nil {
		return
	}
	m.suspiciousFlags.Inc()
}

func (m *Metrics) ChainRPC(method string, seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.chainRPCDuration.WithLabelValues(method, outcome).Observe(seconds)
}

func (m *Metrics) Degraded(operation string, mode string) {
	if m == nil {
		return
	}
	m.degradedOperations.WithLabelValues(operation, mode).Inc()
}
