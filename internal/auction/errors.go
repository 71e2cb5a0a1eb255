package auction

import "errors"

var (
	ErrInvalidLotConfig     = errors.New("auction: invalid lot config")
	ErrLotNotFound          = errors.New("auction: lot not found")
	ErrLotExists            = errors.New("auction: lot already exists")
	ErrAlreadyActive        = errors.New("auction: lot already active")
	ErrLotNotBuyable        = errors.New("auction: lot not buyable")
	ErrLotNotActive         = errors.New("auction: lot not active")
	ErrNoPendingPayment     = errors.New("auction: no pending payment")
	ErrInvalidPaymentMethod = errors.New("auction: unsupported payment method")
	ErrMissingBuyer         = errors.New("auction: buyer identity required")
	ErrReferenceCollision   = errors.New("auction: could not allocate a unique payment reference")
	ErrRegistryClosed       = errors.New("auction: registry closed")
)
