package monitoring

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrntr/cadran/internal/models"
)

func TestMonitor_HandleLotEvent(t *testing.T) {
	m := NewMonitor(func() []models.Lot { return nil })
	ctx := context.Background()

	ticked := testutil.ToFloat64(lotTransitions.WithLabelValues("ticked"))
	confirmed := testutil.ToFloat64(paymentsConfirmed.WithLabelValues("wave"))

	lot := models.Lot{ID: "metrics-lot", CurrentPrice: 349, TimeRemaining: 179, Status: models.StatusActive}
	require.NoError(t, m.HandleLotEvent(ctx, models.LotEvent{Kind: models.EventTicked, Lot: lot}))

	assert.Equal(t, ticked+1, testutil.ToFloat64(lotTransitions.WithLabelValues("ticked")))
	assert.Equal(t, 349.0, testutil.ToFloat64(lotPrice.WithLabelValues("metrics-lot")))
	assert.Equal(t, 179.0, testutil.ToFloat64(lotTimeRemaining.WithLabelValues("metrics-lot")))

	lot.Status = models.StatusSold
	lot.Payment = &models.PaymentRecord{Method: models.MethodWave, Amount: 349, Status: models.PaymentPending}
	require.NoError(t, m.HandleLotEvent(ctx, models.LotEvent{Kind: models.EventSold, Lot: lot}))

	lot.Payment.Status = models.PaymentConfirmed
	require.NoError(t, m.HandleLotEvent(ctx, models.LotEvent{Kind: models.EventPaymentConfirmed, Lot: lot}))
	assert.Equal(t, confirmed+1, testutil.ToFloat64(paymentsConfirmed.WithLabelValues("wave")))
}

func TestMonitor_Collect(t *testing.T) {
	lots := []models.Lot{
		{ID: "a", Status: models.StatusActive},
		{ID: "b", Status: models.StatusActive},
		{ID: "c", Status: models.StatusSold},
	}
	m := NewMonitor(func() []models.Lot { return lots })
	m.collect()

	tests := []struct {
		status models.LotStatus
		want   float64
	}{
		{models.StatusActive, 2},
		{models.StatusSold, 1},
		{models.StatusInactive, 0},
		{models.StatusWithdrawn, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, testutil.ToFloat64(lotsByStatus.WithLabelValues(string(tt.status))))
		})
	}
	assert.Greater(t, testutil.ToFloat64(goroutineCount), 0.0)
}
