package database

import (
	"context"
	"fmt"
	"time"

	"innkeeper/internal/models"
)

// LedgerPageSize is the number of ledger rows shown per chat page.
const LedgerPageSize = 5

// AddCharge inserts a charge line item and sets its ID.
func (db *DB) AddCharge(ctx context.Context, c *models.BookingCharge) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO booking_charges (booking_id, charge_type, description, quantity,
			unit_amount, amount, is_voided, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		c.BookingID, c.ChargeType, c.Description, c.Quantity, c.UnitAmount, c.Amount, now)
	if err != nil {
		return fmt.Errorf("add charge: %w", err)
	}
	c.ID, err = res.LastInsertId()
	c.CreatedAt = now
	return err
}

// AddPayment inserts a payment or refund and sets its ID.
func (db *DB) AddPayment(ctx context.Context, p *models.BookingPayment) error {
	if p.Method == "" {
		p.Method = "other"
	}
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO booking_payments (booking_id, payment_type, method, amount, is_voided, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		p.BookingID, p.PaymentType, p.Method, p.Amount, now)
	if err != nil {
		return fmt.Errorf("add payment: %w", err)
	}
	p.ID, err = res.LastInsertId()
	p.CreatedAt = now
	return err
}

// ListCharges returns one page of non-voided charges for a booking.
func (db *DB) ListCharges(ctx context.Context, bookingID int64, page int) ([]models.BookingCharge, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, booking_id, charge_type, description, quantity, unit_amount,
		       amount, is_voided, created_at
		FROM booking_charges
		WHERE booking_id = ? AND is_voided = 0
		ORDER BY id
		LIMIT ? OFFSET ?`, bookingID, LedgerPageSize, page*LedgerPageSize)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	defer rows.Close()

	var out []models.BookingCharge
	for rows.Next() {
		var c models.BookingCharge
		if err := rows.Scan(&c.ID, &c.BookingID, &c.ChargeType, &c.Description,
			&c.Quantity, &c.UnitAmount, &c.Amount, &c.IsVoided, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountCharges returns the number of non-voided charges for a booking.
func (db *DB) CountCharges(ctx context.Context, bookingID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM booking_charges WHERE booking_id = ? AND is_voided = 0`,
		bookingID).Scan(&n)
	return n, err
}

// ListPayments returns one page of non-voided payments for a booking.
func (db *DB) ListPayments(ctx context.Context, bookingID int64, page int) ([]models.BookingPayment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, booking_id, payment_type, method, amount, is_voided, created_at
		FROM booking_payments
		WHERE booking_id = ? AND is_voided = 0
		ORDER BY id
		LIMIT ? OFFSET ?`, bookingID, LedgerPageSize, page*LedgerPageSize)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []models.BookingPayment
	for rows.Next() {
		var p models.BookingPayment
		if err := rows.Scan(&p.ID, &p.BookingID, &p.PaymentType, &p.Method,
			&p.Amount, &p.IsVoided, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountPayments returns the number of non-voided payments for a booking.
func (db *DB) CountPayments(ctx context.Context, bookingID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM booking_payments WHERE booking_id = ? AND is_voided = 0`,
		bookingID).Scan(&n)
	return n, err
}

// VoidCharge soft-deletes a charge. The row stays for audit.
func (db *DB) VoidCharge(ctx context.Context, chargeID int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE booking_charges SET is_voided = 1 WHERE id = ? AND is_voided = 0`, chargeID)
	if err != nil {
		return fmt.Errorf("void charge %d: %w", chargeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLedgerRowNotFound
	}
	return nil
}

// VoidPayment soft-deletes a payment.
func (db *DB) VoidPayment(ctx context.Context, paymentID int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE booking_payments SET is_voided = 1 WHERE id = ? AND is_voided = 0`, paymentID)
	if err != nil {
		return fmt.Errorf("void payment %d: %w", paymentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLedgerRowNotFound
	}
	return nil
}

// GetFinancialSummary recomputes totals for a booking: non-voided charges
// and non-voided payments net of refunds.
func (db *DB) GetFinancialSummary(ctx context.Context, bookingID int64) (models.FinancialSummary, error) {
	var s models.FinancialSummary
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM booking_charges
		WHERE booking_id = ? AND is_voided = 0`, bookingID).Scan(&s.ChargesTotal)
	if err != nil {
		return s, fmt.Errorf("charges total: %w", err)
	}
	err = db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN payment_type = 'refund' THEN -amount ELSE amount END), 0)
		FROM booking_payments
		WHERE booking_id = ? AND is_voided = 0`, bookingID).Scan(&s.PaymentsTotal)
	if err != nil {
		return s, fmt.Errorf("payments total: %w", err)
	}
	return s, nil
}
