// internal/metrics/collector.go
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "launchpad"

// Collector управляет набором метрик лаунчпада
type Collector struct {
	trades      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	fees        *prometheus.CounterVec
	claims      prometheus.Counter
	outstanding prometheus.Gauge
	completed   prometheus.Counter
	rejections  *prometheus.CounterVec
}

// NewCollector создает коллектор и регистрирует его метрики в reg.
// При reg == nil метрики попадают в собственный prometheus.NewRegistry().
// Уже зарегистрированные в reg метрики переиспользуются.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Collector{
		trades: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Total number of settled trades",
			},
			[]string{"side"},
		)),
		duration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trade_duration_seconds",
				Help:      "Trade settlement duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"side"},
		)),
		fees: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fee_lamports_total",
				Help:      "Fee lamports withheld into escrow, by component",
			},
			[]string{"component"},
		)),
		claims: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invite_claimed_lamports_total",
			Help:      "Lamports paid out by invite profit claims",
		})),
		outstanding: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "escrow_outstanding_lamports",
			Help:      "Escrow received minus sent",
		})),
		completed: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "curves_completed_total",
			Help:      "Bonding curves driven to exhaustion",
		})),
		rejections: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Rejected requests by operation and error kind",
			},
			[]string{"op", "kind"},
		)),
	}
}

// register регистрирует metric в reg или возвращает уже зарегистрированную
func register[T prometheus.Collector](reg prometheus.Registerer, metric T) T {
	err := reg.Register(metric)
	if err == nil {
		return metric
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}

// RecordTrade записывает метрики сделки
func (c *Collector) RecordTrade(side string, duration time.Duration) {
	c.trades.WithLabelValues(side).Inc()
	c.duration.WithLabelValues(side).Observe(duration.Seconds())
}

// RecordFees записывает распределение комиссии
func (c *Collector) RecordFees(total, protocol, creator, invite uint64) {
	c.fees.WithLabelValues("total").Add(float64(total))
	c.fees.WithLabelValues("protocol").Add(float64(protocol))
	c.fees.WithLabelValues("creator").Add(float64(creator))
	c.fees.WithLabelValues("invite").Add(float64(invite))
}

// RecordClaim записывает выплату реферальной прибыли
func (c *Collector) RecordClaim(amount uint64) {
	c.claims.Add(float64(amount))
}

// SetEscrowOutstanding обновляет received - sent
func (c *Collector) SetEscrowOutstanding(lamports uint64) {
	c.outstanding.Set(float64(lamports))
}

// RecordCompletion учитывает исчерпание кривой
func (c *Collector) RecordCompletion() {
	c.completed.Inc()
}

// RecordRejection учитывает отклоненный запрос
func (c *Collector) RecordRejection(op, kind string) {
	c.rejections.WithLabelValues(op, kind).Inc()
}
