package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"

	"github.com/xtrntr/cadran/internal/models"
)

var (
	lotTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadran_lot_transitions_total",
			Help: "Total lot transitions by event kind",
		},
		[]string{"kind"},
	)

	lotPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cadran_lot_current_price",
			Help: "Current asking price per lot",
		},
		[]string{"lot_id"},
	)

	lotTimeRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cadran_lot_time_remaining_seconds",
			Help: "Seconds left on the clock per lot",
		},
		[]string{"lot_id"},
	)

	lotsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cadran_lots",
			Help: "Current number of lots per status",
		},
		[]string{"status"},
	)

	saleAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cadran_sale_amount",
			Help:    "Price at which lots were sold",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10),
		},
	)

	paymentsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadran_payments_confirmed_total",
			Help: "Total confirmed payments by method",
		},
		[]string{"method"},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadran_active_goroutines",
			Help: "Current number of goroutines",
		},
	)
)

var allStatuses = []models.LotStatus{
	models.StatusInactive,
	models.StatusActive,
	models.StatusSold,
	models.StatusUnsoldFloor,
	models.StatusUnsoldExpired,
	models.StatusWithdrawn,
}

// Monitor records auction metrics from lot events and periodic snapshots
type Monitor struct {
	snapshot func() []models.Lot
}

func NewMonitor(snapshot func() []models.Lot) *Monitor {
	return &Monitor{snapshot: snapshot}
}

// HandleLotEvent updates counters and per-lot gauges for ev
func (m *Monitor) HandleLotEvent(_ context.Context, ev models.LotEvent) error {
	lotTransitions.WithLabelValues(string(ev.Kind)).Inc()

	lot := ev.Lot
	lotPrice.WithLabelValues(lot.ID).Set(float64(lot.CurrentPrice))
	lotTimeRemaining.WithLabelValues(lot.ID).Set(float64(lot.TimeRemaining))

	switch ev.Kind {
	case models.EventSold:
		if lot.Payment != nil {
			saleAmount.Observe(float64(lot.Payment.Amount))
		}
	case models.EventPaymentConfirmed:
		if lot.Payment != nil {
			paymentsConfirmed.WithLabelValues(string(lot.Payment.Method)).Inc()
		}
	}
	return nil
}

// Run collects snapshot-derived gauges every interval until ctx is done
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect()
		}
	}
}

func (m *Monitor) collect() {
	counts := lo.CountValuesBy(m.snapshot(), func(l models.Lot) models.LotStatus {
		return l.Status
	})
	for _, s := range allStatuses {
		lotsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
	goroutineCount.Set(float64(runtime.NumGoroutine()))
}
