// Package storage is the SQLite persistence collaborator.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"trackify/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const busyTimeoutMillis = 5000

type SQLiteRepository struct {
	db *sql.DB
}

// DSN builds the driver connection string for a database file.
func DSN(dbPath string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", dbPath, busyTimeoutMillis)
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// single writer; concurrent generator workers queue behind it
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// transient marks a driver failure as retryable by a later run.
func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrTransientStore, err)
}

// writeError classifies a failed write. Constraint violations are permanent and
// never reported as transient.
func writeError(op string, err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return transient(op, err)
	}
	switch code := se.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%s: %w: %w", op, core.ErrNotFound, err)
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		return fmt.Errorf("%s: %w: %w", op, core.ErrDataIntegrity, err)
	default:
		return transient(op, err)
	}
}

const subscriptionColumns = `id, name, price_cents, frequency, start_date, end_date, category_id, active`

func (r *SQLiteRepository) CreateSubscription(ctx context.Context, s core.Subscription) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (name, price_cents, frequency, start_date, end_date, category_id, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.Price.Cents, string(s.Frequency), s.StartDate.String(),
		nullDate(s.EndDate), nullID(s.CategoryID), s.Active)
	if err != nil {
		return 0, writeError("create subscription", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, transient("create subscription", err)
	}

	slog.InfoContext(ctx, "Subscription saved to SQLite",
		"id", id,
		"name", s.Name,
		"price_cents", s.Price.Cents,
		"frequency", s.Frequency)

	return id, nil
}

func (r *SQLiteRepository) SetSubscriptionActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	if err != nil {
		return transient("update subscription", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return transient("update subscription", err)
	}
	if n == 0 {
		return fmt.Errorf("subscription %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	return r.querySubscriptions(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY id`)
}

func (r *SQLiteRepository) ListActiveSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	return r.querySubscriptions(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE active = 1 ORDER BY id`)
}

func (r *SQLiteRepository) querySubscriptions(ctx context.Context, query string, args ...any) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, transient("query subscriptions", err)
	}
	defer rows.Close()

	var out []core.Subscription
	for rows.Next() {
		var (
			s          core.Subscription
			frequency  string
			start      string
			end        sql.NullString
			categoryID sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Price.Cents, &frequency, &start, &end, &categoryID, &s.Active); err != nil {
			return nil, transient("scan subscription", err)
		}
		s.Frequency = core.BillingFrequency(frequency)
		// unparsable dates are left zero and rejected later by Subscription.Validate
		s.StartDate, _ = core.ParseDate(start)
		if end.Valid && end.String != "" {
			s.EndDate, _ = core.ParseDate(end.String)
		}
		s.CategoryID = categoryID.Int64
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate subscriptions", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO categories (name, color) VALUES (?, ?)`, c.Name, c.Color)
	if err != nil {
		return 0, transient("create category", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, transient("create category", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, transient("query categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color); err != nil {
			return nil, transient("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate categories", err)
	}
	return out, nil
}

// InsertPayment stores p. An auto-generated payment whose cycle is already
// recorded is dropped by the unique index and reported as core.ErrDuplicatePayment.
// A payment for an unknown subscription fails with core.ErrNotFound.
func (r *SQLiteRepository) InsertPayment(ctx context.Context, p core.Payment) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var cycle sql.NullInt64
	if p.AutoGenerated {
		cycle = sql.NullInt64{Int64: int64(p.Cycle), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (subscription_id, amount_cents, date, status, auto_generated, cycle, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subscription_id, cycle) DO NOTHING`,
		p.SubscriptionID, p.Amount.Cents, p.Date.String(), string(p.Status), p.AutoGenerated, cycle, p.Notes)
	if err != nil {
		return 0, writeError(fmt.Sprintf("insert payment for subscription %d", p.SubscriptionID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, transient("insert payment", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("subscription %d cycle %d: %w", p.SubscriptionID, p.Cycle, core.ErrDuplicatePayment)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, transient("insert payment", err)
	}
	return id, nil
}

func (r *SQLiteRepository) ConfirmPayment(ctx context.Context, id int64) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("payment %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return transient("get payment", err)
	}
	if core.PaymentStatus(status) != core.StatusPending {
		return fmt.Errorf("payment %d is %s, only pending payments can be confirmed", id, status)
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ? AND status = ?`,
		string(core.StatusConfirmed), id, string(core.StatusPending)); err != nil {
		return transient("confirm payment", err)
	}
	return nil
}

const paymentColumns = `id, subscription_id, amount_cents, date, status, auto_generated, cycle, notes`

func (r *SQLiteRepository) LastPaymentFor(ctx context.Context, subscriptionID int64) (*core.Payment, error) {
	payments, err := r.queryPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE subscription_id = ? ORDER BY date DESC, id DESC LIMIT 1`,
		subscriptionID)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, nil
	}
	return &payments[0], nil
}

func (r *SQLiteRepository) PaymentsInRange(ctx context.Context, subscriptionID int64, from, to core.Date) ([]core.Payment, error) {
	return r.queryPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE subscription_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id`,
		subscriptionID, from.String(), to.String())
}

func (r *SQLiteRepository) ListPayments(ctx context.Context) ([]core.Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY date, id`)
}

func (r *SQLiteRepository) queryPayments(ctx context.Context, query string, args ...any) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, transient("query payments", err)
	}
	defer rows.Close()

	var out []core.Payment
	for rows.Next() {
		var (
			p      core.Payment
			date   string
			status string
			cycle  sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.SubscriptionID, &p.Amount.Cents, &date, &status, &p.AutoGenerated, &cycle, &p.Notes); err != nil {
			return nil, transient("scan payment", err)
		}
		p.Date, err = core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("payment %d: %w", p.ID, err)
		}
		p.Status = core.PaymentStatus(status)
		p.Cycle = int(cycle.Int64)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("iterate payments", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkReminderSent(ctx context.Context, key string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reminder_log (key, sent_at) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		key, at.UTC())
	if err != nil {
		return false, transient("record reminder", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, transient("record reminder", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) ReminderSent(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reminder_log WHERE key = ?)`, key).Scan(&exists)
	if err != nil {
		return false, transient("check reminder", err)
	}
	return exists, nil
}

func nullDate(d core.Date) sql.NullString {
	if d.IsEmpty() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}
