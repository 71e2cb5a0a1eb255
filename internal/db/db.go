package db

import (
	"context"
	"fmt"
	"time"

	"github.com/xtrntr/cadran/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

// HandleLotEvent persists the lot snapshot carried by ev
func (db *DB) HandleLotEvent(ctx context.Context, ev models.LotEvent) error {
	return db.SaveLot(ctx, ev.Lot)
}

// SaveLot upserts a lot and its payment. Writes carrying a version not newer
// than the stored one are ignored, so replays and out-of-order writers never
// roll a lot back.
func (db *DB) SaveLot(ctx context.Context, lot models.Lot) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var paymentRef *string
	if lot.Payment != nil {
		paymentRef = &lot.Payment.Reference
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO lots (id, product, quantity, start_price, floor_price, budget_seconds,
			current_price, time_remaining, status, winner, payment_reference, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			current_price = EXCLUDED.current_price,
			time_remaining = EXCLUDED.time_remaining,
			status = EXCLUDED.status,
			winner = EXCLUDED.winner,
			payment_reference = EXCLUDED.payment_reference,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
		WHERE lots.version < EXCLUDED.version`,
		lot.ID, lot.Product, lot.Quantity, lot.StartPrice, lot.FloorPrice, lot.Budget,
		lot.CurrentPrice, lot.TimeRemaining, string(lot.Status), lot.Winner, paymentRef, lot.Version,
		lot.CreatedAt, lot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// stale write, the stored row is already newer
		return nil
	}

	if lot.Payment != nil {
		p := lot.Payment
		_, err = tx.Exec(ctx, `
			INSERT INTO payments (reference, lot_id, method, amount, status, created_at, confirmed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (reference) DO UPDATE SET
				status = EXCLUDED.status,
				confirmed_at = EXCLUDED.confirmed_at
			WHERE payments.status = 'PENDING'`,
			p.Reference, lot.ID, string(p.Method), p.Amount, string(p.Status), p.CreatedAt, p.ConfirmedAt)
		if err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateLot inserts a lot unless one with the same id exists
func (db *DB) CreateLot(ctx context.Context, lot models.Lot) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO lots (id, product, quantity, start_price, floor_price, budget_seconds,
			current_price, time_remaining, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (id) DO NOTHING`,
		lot.ID, lot.Product, lot.Quantity, lot.StartPrice, lot.FloorPrice, lot.Budget,
		lot.CurrentPrice, lot.TimeRemaining, string(lot.Status), lot.Version, lot.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create lot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CountLots returns the number of stored lots
func (db *DB) CountLots(ctx context.Context) (int, error) {
	var n int
	if err := db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM lots").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count lots: %w", err)
	}
	return n, nil
}

// GetLot retrieves one lot with its current payment
func (db *DB) GetLot(ctx context.Context, id string) (*models.Lot, error) {
	row := db.Pool.QueryRow(ctx, selectLots+" WHERE l.id = $1", id)
	lot, err := scanLot(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("lot %s not found", id)
		}
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return lot, nil
}

// ListLots retrieves every lot, oldest first
func (db *DB) ListLots(ctx context.Context) ([]models.Lot, error) {
	rows, err := db.Pool.Query(ctx, selectLots+" ORDER BY l.created_at ASC, l.id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	defer rows.Close()

	var lots []models.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, *lot)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListPayments retrieves every payment ever issued for a lot, oldest first
func (db *DB) ListPayments(ctx context.Context, lotID string) ([]models.PaymentRecord, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT method, reference, amount, status, created_at, confirmed_at
		FROM payments
		WHERE lot_id = $1
		ORDER BY created_at ASC`,
		lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.PaymentRecord
	for rows.Next() {
		var p models.PaymentRecord
		var method, status string
		if err := rows.Scan(&method, &p.Reference, &p.Amount, &status, &p.CreatedAt, &p.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Method = models.PaymentMethod(method)
		p.Status = models.PaymentStatus(status)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const selectLots = `
	SELECT l.id, l.product, l.quantity, l.start_price, l.floor_price, l.budget_seconds,
		l.current_price, l.time_remaining, l.status, COALESCE(l.winner, ''), l.version,
		l.created_at, l.updated_at,
		p.reference, p.method, p.amount, p.status, p.created_at, p.confirmed_at
	FROM lots l
	LEFT JOIN payments p ON p.reference = l.payment_reference`

func scanLot(row pgx.Row) (*models.Lot, error) {
	var (
		lot         models.Lot
		status      string
		ref, method *string
		amount      *int
		pStatus     *string
		pCreatedAt  *time.Time
		confirmedAt *time.Time
	)
	err := row.Scan(
		&lot.ID, &lot.Product, &lot.Quantity, &lot.StartPrice, &lot.FloorPrice, &lot.Budget,
		&lot.CurrentPrice, &lot.TimeRemaining, &status, &lot.Winner, &lot.Version,
		&lot.CreatedAt, &lot.UpdatedAt,
		&ref, &method, &amount, &pStatus, &pCreatedAt, &confirmedAt,
	)
	if err != nil {
		return nil, err
	}
	lot.Status = models.LotStatus(status)

	if ref != nil {
		lot.Payment = &models.PaymentRecord{
			Method:      models.PaymentMethod(*method),
			Reference:   *ref,
			Amount:      *amount,
			Status:      models.PaymentStatus(*pStatus),
			CreatedAt:   *pCreatedAt,
			ConfirmedAt: confirmedAt,
		}
	}
	return &lot, nil
}
