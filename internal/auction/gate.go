package auction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xtrntr/cadran/internal/models"
)

// Publisher receives every lot event. Publish is called while the lot's
// mutex is held and must not block.
type Publisher interface {
	Publish(ev models.LotEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.LotEvent) {}

// BidGate owns one lot's state and its exclusive section. The lot's Clock,
// buyers, payment confirmation and snapshots all go through it.
type BidGate struct {
	mu   sync.Mutex
	lot  models.Lot
	run  uint64             // generation of the live Clock
	halt context.CancelFunc // stops the live Clock

	payments  *PaymentTracker
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger
}

func newBidGate(lot models.Lot, payments *PaymentTracker, publisher Publisher, now func() time.Time, logger *slog.Logger) *BidGate {
	return &BidGate{
		lot:       lot,
		payments:  payments,
		publisher: publisher,
		now:       now,
		logger:    logger.With(slog.String("lot", lot.ID)),
	}
}

// Buy accepts the current price on behalf of buyer. At most one call wins;
// every later or losing call gets ErrLotNotBuyable.
func (g *BidGate) Buy(buyer string, method models.PaymentMethod) (models.PaymentRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lot.Status != models.StatusActive {
		return models.PaymentRecord{}, fmt.Errorf("%w: lot %s is %s", ErrLotNotBuyable, g.lot.ID, g.lot.Status)
	}

	payment, err := g.payments.Open(method, g.lot.CurrentPrice)
	if err != nil {
		return models.PaymentRecord{}, err
	}

	g.lot.Status = models.StatusSold
	g.lot.Winner = buyer
	g.lot.Payment = payment
	g.stopClock()
	g.emit(models.EventSold)

	g.logger.Info("lot sold",
		slog.String("buyer", buyer),
		slog.Int("amount", payment.Amount),
		slog.String("reference", payment.Reference))
	return *payment, nil
}

// Snapshot returns a copy of the lot taken inside the exclusive section
func (g *BidGate) Snapshot() models.Lot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lot.Clone()
}

// begin resets the lot to its initial values, marks it ACTIVE and returns
// the run generation and context the new Clock must be bound to.
func (g *BidGate) begin(parent context.Context) (uint64, context.Context, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lot.Status == models.StatusActive {
		return 0, nil, fmt.Errorf("%w: lot %s", ErrAlreadyActive, g.lot.ID)
	}
	if err := parent.Err(); err != nil {
		return 0, nil, ErrRegistryClosed
	}

	g.stopClock()
	g.lot.CurrentPrice = g.lot.StartPrice
	g.lot.TimeRemaining = g.lot.Budget
	g.lot.Winner = ""
	g.lot.Payment = nil
	g.lot.Status = models.StatusActive

	g.run++
	ctx, cancel := context.WithCancel(parent)
	g.halt = cancel
	g.emit(models.EventStarted)

	g.logger.Info("lot started",
		slog.Int("start_price", g.lot.StartPrice),
		slog.Int("floor_price", g.lot.FloorPrice),
		slog.Int("budget", g.lot.Budget))
	return g.run, ctx, nil
}

// confirmPayment is the only mutation allowed on a terminal lot
func (g *BidGate) confirmPayment() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lot.Status != models.StatusSold {
		return fmt.Errorf("%w: lot %s is %s", ErrNoPendingPayment, g.lot.ID, g.lot.Status)
	}
	if err := g.payments.Confirm(g.lot.Payment); err != nil {
		return fmt.Errorf("%w: lot %s", err, g.lot.ID)
	}
	g.emit(models.EventPaymentConfirmed)

	g.logger.Info("payment confirmed", slog.String("reference", g.lot.Payment.Reference))
	return nil
}

// abort withdraws an ACTIVE lot, freezing price and time where they are
func (g *BidGate) abort() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lot.Status != models.StatusActive {
		return fmt.Errorf("%w: lot %s is %s", ErrLotNotActive, g.lot.ID, g.lot.Status)
	}
	g.lot.Status = models.StatusWithdrawn
	g.stopClock()
	g.emit(models.EventWithdrawn)

	g.logger.Info("lot withdrawn",
		slog.Int("price", g.lot.CurrentPrice),
		slog.Int("time_remaining", g.lot.TimeRemaining))
	return nil
}

// emit bumps the version and publishes a snapshot; callers hold g.mu
func (g *BidGate) emit(kind models.EventKind) {
	now := g.now()
	g.lot.UpdatedAt = now
	g.lot.Version++
	g.publisher.Publish(models.LotEvent{
		Kind:    kind,
		Lot:     g.lot.Clone(),
		Version: g.lot.Version,
		At:      now,
	})
}

// stopClock cancels the live Clock's context; callers hold g.mu
func (g *BidGate) stopClock() {
	if g.halt != nil {
		g.halt()
		g.halt = nil
	}
}
