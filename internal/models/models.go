package models

import "time"

// LotStatus is the lifecycle state of a lot
type LotStatus string

const (
	StatusInactive      LotStatus = "INACTIVE"
	StatusActive        LotStatus = "ACTIVE"
	StatusSold          LotStatus = "SOLD"
	StatusUnsoldFloor   LotStatus = "UNSOLD_FLOOR"
	StatusUnsoldExpired LotStatus = "UNSOLD_EXPIRED"
	StatusWithdrawn     LotStatus = "WITHDRAWN"
)

// Terminal reports whether the status ends a run
func (s LotStatus) Terminal() bool {
	switch s {
	case StatusSold, StatusUnsoldFloor, StatusUnsoldExpired, StatusWithdrawn:
		return true
	}
	return false
}

// PaymentMethod is a settlement channel offered to buyers
type PaymentMethod string

const (
	MethodWave        PaymentMethod = "wave"
	MethodOrangeMoney PaymentMethod = "orange_money"
	MethodFreeMoney   PaymentMethod = "free_money"
	MethodCash        PaymentMethod = "cash"
)

// Valid reports whether m is a supported settlement channel
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodWave, MethodOrangeMoney, MethodFreeMoney, MethodCash:
		return true
	}
	return false
}

// PaymentStatus only ever moves from PENDING to CONFIRMED
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
)

// PaymentRecord is the settlement owed for a sold lot
type PaymentRecord struct {
	Method      PaymentMethod `json:"method"`
	Reference   string        `json:"reference"`
	Amount      int           `json:"amount"` // CurrentPrice at the instant of sale
	Status      PaymentStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
}

// LotDescriptor holds the administrative parameters of a new lot
type LotDescriptor struct {
	Product    string `json:"product"`
	Quantity   string `json:"quantity"`
	StartPrice int    `json:"start_price"`
	FloorPrice int    `json:"floor_price"`
	Budget     int    `json:"budget_seconds,omitempty"` // 0 selects the registry default
}

// Lot is one descending-price auction
type Lot struct {
	ID            string         `json:"id"`
	Product       string         `json:"product"`
	Quantity      string         `json:"quantity"`
	StartPrice    int            `json:"start_price"`
	FloorPrice    int            `json:"floor_price"`
	Budget        int            `json:"budget_seconds"`
	CurrentPrice  int            `json:"current_price"`
	TimeRemaining int            `json:"time_remaining"`
	Status        LotStatus      `json:"status"`
	Winner        string         `json:"winner,omitempty"`
	Payment       *PaymentRecord `json:"payment,omitempty"`
	Version       int64          `json:"version"` // bumped on every transition, survives restarts
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Clone returns a copy that shares no memory with l
func (l Lot) Clone() Lot {
	if l.Payment != nil {
		p := *l.Payment
		if p.ConfirmedAt != nil {
			at := *p.ConfirmedAt
			p.ConfirmedAt = &at
		}
		l.Payment = &p
	}
	return l
}

// EventKind names the transition that produced a LotEvent
type EventKind string

const (
	EventCreated          EventKind = "created"
	EventRestored         EventKind = "restored"
	EventStarted          EventKind = "started"
	EventTicked           EventKind = "ticked"
	EventSold             EventKind = "sold"
	EventPaymentConfirmed EventKind = "payment_confirmed"
	EventWithdrawn        EventKind = "withdrawn"
)

// LotEvent is a snapshot of a lot taken right after a transition
type LotEvent struct {
	Kind    EventKind `json:"kind"`
	Lot     Lot       `json:"lot"`
	Version int64     `json:"version"` // Lot.Version after the transition
	At      time.Time `json:"at"`
}
