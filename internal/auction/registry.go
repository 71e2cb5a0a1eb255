package auction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/xtrntr/cadran/internal/models"
)

const (
	// DefaultTickInterval is the real-time length of one tick
	DefaultTickInterval = time.Second
	// DefaultBudget is the time budget, in ticks, of lots created without one
	DefaultBudget = 180
)

// Registry owns every lot and is the only entry point for lifecycle operations
type Registry struct {
	mu    sync.RWMutex
	gates map[string]*BidGate

	ctx    context.Context
	cancel context.CancelFunc
	clocks sync.WaitGroup

	tickInterval time.Duration
	newTicker    TickerFactory
	budget       int
	newReference func() string
	newID        func() string
	now          func() time.Time
	payments     *PaymentTracker
	publisher    Publisher
	logger       *slog.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithTickInterval sets the real-time duration of one tick
func WithTickInterval(d time.Duration) Option {
	return func(r *Registry) { r.tickInterval = d }
}

// WithTickerFactory replaces the tick source
func WithTickerFactory(f TickerFactory) Option {
	return func(r *Registry) { r.newTicker = f }
}

// WithDefaultBudget sets the time budget, in ticks, of lots created without one
func WithDefaultBudget(seconds int) Option {
	return func(r *Registry) { r.budget = seconds }
}

// WithReferenceGenerator replaces the payment reference generator
func WithReferenceGenerator(f func() string) Option {
	return func(r *Registry) { r.newReference = f }
}

// WithPublisher sets the receiver of lot events
func WithPublisher(p Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		gates:        make(map[string]*BidGate),
		ctx:          ctx,
		cancel:       cancel,
		tickInterval: DefaultTickInterval,
		newTicker:    NewTimeTicker,
		budget:       DefaultBudget,
		newID:        uuid.NewString,
		now:          time.Now,
		publisher:    nopPublisher{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.publisher == nil {
		r.publisher = nopPublisher{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With(slog.String("caller", "Registry"))
	r.payments = NewPaymentTracker(r.newReference)
	r.payments.now = r.now
	return r
}

// Create allocates a new INACTIVE lot and returns its id
func (r *Registry) Create(d models.LotDescriptor) (string, error) {
	lot, err := NewLot(r.newID(), d, r.budget, r.now())
	if err != nil {
		return "", err
	}
	if err := r.insert(lot, models.EventCreated); err != nil {
		return "", err
	}
	r.logger.Info("lot created", slog.String("lot", lot.ID), slog.String("product", lot.Product))
	return lot.ID, nil
}

// Restore re-inserts a persisted lot. A lot persisted as ACTIVE lost its
// Clock with the previous process and comes back INACTIVE.
func (r *Registry) Restore(lot models.Lot) error {
	if lot.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidLotConfig)
	}
	if err := validateConfig(lot.StartPrice, lot.FloorPrice, lot.Budget); err != nil {
		return err
	}
	lot = lot.Clone()

	switch lot.Status {
	case models.StatusActive, models.StatusInactive:
		lot.Status = models.StatusInactive
		lot.CurrentPrice = lot.StartPrice
		lot.TimeRemaining = lot.Budget
		lot.Winner = ""
		lot.Payment = nil
	case models.StatusSold:
		if lot.Winner == "" || lot.Payment == nil {
			return fmt.Errorf("%w: sold lot %s has no winner or payment", ErrInvalidLotConfig, lot.ID)
		}
		r.payments.reserve(lot.Payment.Reference)
	case models.StatusUnsoldFloor, models.StatusUnsoldExpired, models.StatusWithdrawn:
		lot.Winner = ""
		lot.Payment = nil
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidLotConfig, lot.Status)
	}

	return r.insert(lot, models.EventRestored)
}

// Start resets a lot and spawns exactly one Clock for it
func (r *Registry) Start(id string) error {
	gate, err := r.lookup(id)
	if err != nil {
		return err
	}

	// Close cancels r.ctx under the write lock, so a clock is either counted
	// before Close waits or never spawned.
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ctx, err := gate.begin(r.ctx)
	if err != nil {
		return err
	}

	clock := &Clock{
		gate:      gate,
		run:       run,
		interval:  r.tickInterval,
		newTicker: r.newTicker,
	}
	r.clocks.Add(1)
	go func() {
		defer r.clocks.Done()
		clock.Run(ctx)
	}()
	return nil
}

// Buy accepts the current price of a lot on behalf of buyer
func (r *Registry) Buy(id, buyer string, method models.PaymentMethod) (models.PaymentRecord, error) {
	if buyer == "" {
		return models.PaymentRecord{}, ErrMissingBuyer
	}
	if !method.Valid() {
		return models.PaymentRecord{}, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}
	gate, err := r.lookup(id)
	if err != nil {
		return models.PaymentRecord{}, err
	}
	return gate.Buy(buyer, method)
}

// ConfirmPayment marks a sold lot's payment as CONFIRMED
func (r *Registry) ConfirmPayment(id string) error {
	gate, err := r.lookup(id)
	if err != nil {
		return err
	}
	return gate.confirmPayment()
}

// Abort withdraws an ACTIVE lot
func (r *Registry) Abort(id string) error {
	gate, err := r.lookup(id)
	if err != nil {
		return err
	}
	return gate.abort()
}

// Snapshot returns a point-in-time copy of one lot
func (r *Registry) Snapshot(id string) (models.Lot, error) {
	gate, err := r.lookup(id)
	if err != nil {
		return models.Lot{}, err
	}
	return gate.Snapshot(), nil
}

// Snapshots returns a copy of every lot, oldest first
func (r *Registry) Snapshots() []models.Lot {
	r.mu.RLock()
	gates := lo.Values(r.gates)
	r.mu.RUnlock()

	lots := lo.Map(gates, func(g *BidGate, _ int) models.Lot {
		return g.Snapshot()
	})
	sort.Slice(lots, func(i, j int) bool {
		if lots[i].CreatedAt.Equal(lots[j].CreatedAt) {
			return lots[i].ID < lots[j].ID
		}
		return lots[i].CreatedAt.Before(lots[j].CreatedAt)
	})
	return lots
}

// Close stops every Clock and waits for them to exit. Lot state is left as is.
func (r *Registry) Close() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.clocks.Wait()
}

func (r *Registry) lookup(id string) (*BidGate, error) {
	r.mu.RLock()
	gate, ok := r.gates[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLotNotFound, id)
	}
	return gate, nil
}

// insert adds a gate for lot; the gate's section is held while it becomes
// visible so its first event precedes any other.
func (r *Registry) insert(lot models.Lot, kind models.EventKind) error {
	gate := newBidGate(lot, r.payments, r.publisher, r.now, r.logger)
	gate.mu.Lock()
	defer gate.mu.Unlock()

	r.mu.Lock()
	if _, exists := r.gates[lot.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLotExists, lot.ID)
	}
	r.gates[lot.ID] = gate
	r.mu.Unlock()

	gate.emit(kind)
	return nil
}

func validateConfig(startPrice, floorPrice, budget int) error {
	switch {
	case startPrice <= 0 || floorPrice <= 0:
		return fmt.Errorf("%w: prices must be positive", ErrInvalidLotConfig)
	case floorPrice > startPrice:
		return fmt.Errorf("%w: floor price %d above start price %d", ErrInvalidLotConfig, floorPrice, startPrice)
	case budget <= 0:
		return fmt.Errorf("%w: time budget must be positive", ErrInvalidLotConfig)
	}
	return nil
}
