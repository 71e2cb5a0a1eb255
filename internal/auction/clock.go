package auction

import (
	"context"
	"log/slog"
	"time"

	"github.com/xtrntr/cadran/internal/models"
)

// Clock lowers one lot's price and remaining time on a fixed interval until
// the lot leaves ACTIVE. A Clock is bound to a single run of its lot and
// never outlives it.
type Clock struct {
	gate      *BidGate
	run       uint64
	interval  time.Duration
	newTicker TickerFactory
}

// Run ticks until the lot is terminal or ctx is cancelled
func (c *Clock) Run(ctx context.Context) {
	ticker := c.newTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if !c.gate.tick(c.run) {
				return
			}
		}
	}
}

// tick applies one decay step and the termination check as a single unit.
// It returns false once the Clock should stop.
func (g *BidGate) tick(run uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if run != g.run || g.lot.Status != models.StatusActive {
		return false
	}

	// a lot stays buyable for one full tick at its floor price
	atFloor := g.lot.CurrentPrice <= g.lot.FloorPrice
	g.lot.TimeRemaining--
	if !atFloor {
		g.lot.CurrentPrice--
	}
	switch {
	case atFloor:
		g.lot.Status = models.StatusUnsoldFloor
	case g.lot.TimeRemaining <= 0 && g.lot.CurrentPrice <= g.lot.FloorPrice:
		g.lot.Status = models.StatusUnsoldFloor
	case g.lot.TimeRemaining <= 0:
		g.lot.Status = models.StatusUnsoldExpired
	}
	g.emit(models.EventTicked)

	if g.lot.Status != models.StatusActive {
		g.stopClock()
		g.logger.Info("lot closed unsold",
			slog.String("status", string(g.lot.Status)),
			slog.Int("price", g.lot.CurrentPrice),
			slog.Int("time_remaining", g.lot.TimeRemaining))
		return false
	}

	g.logger.Debug("tick",
		slog.Int("price", g.lot.CurrentPrice),
		slog.Int("time_remaining", g.lot.TimeRemaining))
	return true
}
