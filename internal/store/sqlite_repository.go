package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/seacatering/subscription-service/internal/domain"
)

// sqliteTimeLayout is fixed width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// OpenSQLite opens the database file at path, creating its directory.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite doesn't support multiple writers, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	return db, nil
}

// SQLiteRepository implements the repository ports on SQLite for local runs and tests.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(domain.DateLayout), Valid: true}
}

func parseNullTime(s sql.NullString, layout string) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(layout, s.String)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func scanSQLiteSubscription(row rowScanner) (*domain.Subscription, error) {
	var (
		sub                         domain.Subscription
		id, mealTypes, deliveryDays string
		allergies                   sql.NullString
		pauseStart, pauseEnd        sql.NullString
		cancelledAt, reactivatedAt  sql.NullString
		createdAt, updatedAt        string
	)
	err := row.Scan(
		&id,
		&sub.OwnerID,
		&sub.Name,
		&sub.Phone,
		&sub.Plan,
		&mealTypes,
		&deliveryDays,
		&allergies,
		&sub.TotalPrice,
		&sub.Status,
		&pauseStart,
		&pauseEnd,
		&cancelledAt,
		&reactivatedAt,
		&createdAt,
		&updatedAt,
		&sub.Version,
	)
	if err != nil {
		return nil, err
	}

	if sub.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if err = json.Unmarshal([]byte(mealTypes), &sub.MealTypes); err != nil {
		return nil, fmt.Errorf("decode meal_types: %w", err)
	}
	if err = json.Unmarshal([]byte(deliveryDays), &sub.DeliveryDays); err != nil {
		return nil, fmt.Errorf("decode delivery_days: %w", err)
	}
	if allergies.Valid {
		sub.Allergies = &allergies.String
	}
	if sub.PauseStart, err = parseNullTime(pauseStart, domain.DateLayout); err != nil {
		return nil, err
	}
	if sub.PauseEnd, err = parseNullTime(pauseEnd, domain.DateLayout); err != nil {
		return nil, err
	}
	if sub.CancelledAt, err = parseNullTime(cancelledAt, sqliteTimeLayout); err != nil {
		return nil, err
	}
	if sub.ReactivatedAt, err = parseNullTime(reactivatedAt, sqliteTimeLayout); err != nil {
		return nil, err
	}
	if sub.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, err
	}
	if sub.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SQLiteRepository) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	mealTypes, err := json.Marshal(stringsOf(sub.MealTypes))
	if err != nil {
		return persistenceError(err, "encode meal_types")
	}
	deliveryDays, err := json.Marshal(stringsOf(sub.DeliveryDays))
	if err != nil {
		return persistenceError(err, "encode delivery_days")
	}
	var allergies sql.NullString
	if sub.Allergies != nil {
		allergies = sql.NullString{String: *sub.Allergies, Valid: true}
	}

	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		sub.ID.String(),
		sub.OwnerID,
		sub.Name,
		sub.Phone,
		string(sub.Plan),
		string(mealTypes),
		string(deliveryDays),
		allergies,
		sub.TotalPrice,
		string(sub.Status),
		nullDate(sub.PauseStart),
		nullDate(sub.PauseEnd),
		nullTime(sub.CancelledAt),
		nullTime(sub.ReactivatedAt),
		formatTime(sub.CreatedAt),
		formatTime(sub.UpdatedAt),
		sub.Version,
	)
	if err != nil {
		return persistenceError(err, "insert subscription")
	}
	return nil
}

func (r *SQLiteRepository) GetSubscription(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ?`
	sub, err := scanSQLiteSubscription(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, persistenceError(err, "get subscription")
	}
	return sub, nil
}

func (r *SQLiteRepository) ListSubscriptions(ctx context.Context, ownerID string) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE (? = '' OR user_id = ?)
		ORDER BY created_at DESC, id
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, ownerID)
	if err != nil {
		return nil, persistenceError(err, "list subscriptions")
	}
	defer rows.Close()

	subs := make([]*domain.Subscription, 0)
	for rows.Next() {
		sub, err := scanSQLiteSubscription(rows)
		if err != nil {
			return nil, persistenceError(err, "scan subscription")
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError(err, "list subscriptions")
	}
	return subs, nil
}

func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, sub *domain.Subscription, expectedVersion int64) error {
	query := `
		UPDATE subscriptions SET
			status = ?,
			pause_start_date = ?,
			pause_end_date = ?,
			cancelled_at = ?,
			reactivated_at = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`
	res, err := r.db.ExecContext(ctx, query,
		string(sub.Status),
		nullDate(sub.PauseStart),
		nullDate(sub.PauseEnd),
		nullTime(sub.CancelledAt),
		nullTime(sub.ReactivatedAt),
		formatTime(sub.UpdatedAt),
		sub.ID.String(),
		expectedVersion,
	)
	if err != nil {
		return persistenceError(err, "update subscription")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return persistenceError(err, "update subscription")
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = ?)`, sub.ID.String()).Scan(&exists); err != nil {
			return persistenceError(err, "check subscription")
		}
		if !exists {
			return ErrSubscriptionNotFound
		}
		return ErrStaleVersion
	}
	sub.Version = expectedVersion + 1
	return nil
}

func scanSQLiteTestimonial(row rowScanner) (*domain.Testimonial, error) {
	var (
		t             domain.Testimonial
		id, createdAt string
	)
	if err := row.Scan(&id, &t.OwnerID, &t.Name, &t.Message, &t.Rating, &t.Location, &t.Approved, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if t.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SQLiteRepository) CreateTestimonial(ctx context.Context, t *domain.Testimonial) error {
	query := `INSERT INTO testimonials (` + testimonialColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		t.ID.String(), t.OwnerID, t.Name, t.Message, t.Rating, t.Location, t.Approved, formatTime(t.CreatedAt))
	if err != nil {
		return persistenceError(err, "insert testimonial")
	}
	return nil
}

func (r *SQLiteRepository) ListTestimonials(ctx context.Context, filter domain.TestimonialFilter) ([]*domain.Testimonial, error) {
	query := `
		SELECT ` + testimonialColumns + `
		FROM testimonials
		WHERE (? = '' OR user_id = ?) AND (? = 0 OR approved = 1)
		ORDER BY created_at DESC, id
	`
	rows, err := r.db.QueryContext(ctx, query, filter.OwnerID, filter.OwnerID, filter.ApprovedOnly)
	if err != nil {
		return nil, persistenceError(err, "list testimonials")
	}
	defer rows.Close()

	out := make([]*domain.Testimonial, 0)
	for rows.Next() {
		t, err := scanSQLiteTestimonial(rows)
		if err != nil {
			return nil, persistenceError(err, "scan testimonial")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError(err, "list testimonials")
	}
	return out, nil
}

func (r *SQLiteRepository) ApproveTestimonial(ctx context.Context, id uuid.UUID) (*domain.Testimonial, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE testimonials SET approved = 1 WHERE id = ?`, id.String())
	if err != nil {
		return nil, persistenceError(err, "approve testimonial")
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, persistenceError(err, "approve testimonial")
	} else if n == 0 {
		return nil, ErrTestimonialNotFound
	}

	query := `SELECT ` + testimonialColumns + ` FROM testimonials WHERE id = ?`
	t, err := scanSQLiteTestimonial(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		return nil, persistenceError(err, "load testimonial")
	}
	return t, nil
}
