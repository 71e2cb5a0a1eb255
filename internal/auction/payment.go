package auction

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xtrntr/cadran/internal/models"
)

// maxReferenceAttempts bounds retries against a generator that keeps colliding
const maxReferenceAttempts = 5

// PaymentTracker issues payment records and advances them from PENDING to CONFIRMED
type PaymentTracker struct {
	newReference func() string
	now          func() time.Time
	issued       sync.Map // reference -> struct{}
}

// NewPaymentTracker creates a tracker; a nil generator falls back to random UUIDs
func NewPaymentTracker(newReference func() string) *PaymentTracker {
	if newReference == nil {
		newReference = uuid.NewString
	}
	return &PaymentTracker{
		newReference: newReference,
		now:          time.Now,
	}
}

// Open creates a pending record for amount with a reference never handed out before
func (t *PaymentTracker) Open(method models.PaymentMethod, amount int) (*models.PaymentRecord, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, method)
	}

	for i := 0; i < maxReferenceAttempts; i++ {
		ref := t.newReference()
		if ref == "" {
			continue
		}
		if _, used := t.issued.LoadOrStore(ref, struct{}{}); used {
			continue
		}
		return &models.PaymentRecord{
			Method:    method,
			Reference: ref,
			Amount:    amount,
			Status:    models.PaymentPending,
			CreatedAt: t.now(),
		}, nil
	}
	return nil, ErrReferenceCollision
}

// Confirm moves a pending record to CONFIRMED
func (t *PaymentTracker) Confirm(p *models.PaymentRecord) error {
	if p == nil || p.Status != models.PaymentPending {
		return ErrNoPendingPayment
	}
	at := t.now()
	p.Status = models.PaymentConfirmed
	p.ConfirmedAt = &at
	return nil
}

// reserve marks a reference restored from storage as used
func (t *PaymentTracker) reserve(ref string) {
	t.issued.Store(ref, struct{}{})
}
