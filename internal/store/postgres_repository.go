/**
 * @description
 * This file implements the PostgreSQL data access layer. It contains all the
 * SQL queries for subscriptions and testimonials. Subscription updates are
 * compare-and-swap on the version column.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/seacatering/subscription-service/internal/domain"
)

// OpenPostgres connects a pool sized for the API server.
func OpenPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statements to work with PgBouncer transaction pooling
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PostgresRepository handles database operations against PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const subscriptionColumns = `
	id, user_id, name, phone, plan, meal_types, delivery_days, allergies, total_price,
	status, pause_start_date, pause_end_date, cancelled_at, reactivated_at,
	created_at, updated_at, version`

func scanPostgresSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		sub          domain.Subscription
		mealTypes    []string
		deliveryDays []string
	)
	err := row.Scan(
		&sub.ID,
		&sub.OwnerID,
		&sub.Name,
		&sub.Phone,
		&sub.Plan,
		&mealTypes,
		&deliveryDays,
		&sub.Allergies,
		&sub.TotalPrice,
		&sub.Status,
		&sub.PauseStart,
		&sub.PauseEnd,
		&sub.CancelledAt,
		&sub.ReactivatedAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
		&sub.Version,
	)
	if err != nil {
		return nil, err
	}
	sub.MealTypes = lo.Map(mealTypes, func(s string, _ int) domain.MealType { return domain.MealType(s) })
	sub.DeliveryDays = lo.Map(deliveryDays, func(s string, _ int) domain.DeliveryDay { return domain.DeliveryDay(s) })
	normalizeTimes(&sub)
	return &sub, nil
}

// CreateSubscription inserts a new subscription row.
func (r *PostgresRepository) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
        INSERT INTO subscriptions (` + subscriptionColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
    `
	_, err := r.db.Exec(ctx, query,
		sub.ID,
		sub.OwnerID,
		sub.Name,
		sub.Phone,
		string(sub.Plan),
		stringsOf(sub.MealTypes),
		stringsOf(sub.DeliveryDays),
		sub.Allergies,
		sub.TotalPrice,
		string(sub.Status),
		sub.PauseStart,
		sub.PauseEnd,
		sub.CancelledAt,
		sub.ReactivatedAt,
		sub.CreatedAt,
		sub.UpdatedAt,
		sub.Version,
	)
	if err != nil {
		return persistenceError(err, "insert subscription")
	}
	return nil
}

// GetSubscription retrieves a subscription by id.
func (r *PostgresRepository) GetSubscription(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanPostgresSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, persistenceError(err, "get subscription")
	}
	return sub, nil
}

// ListSubscriptions returns ownerID's subscriptions, or every subscription
// when ownerID is empty, newest first.
func (r *PostgresRepository) ListSubscriptions(ctx context.Context, ownerID string) ([]*domain.Subscription, error) {
	query := `
        SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE ($1 = '' OR user_id = $1)
        ORDER BY created_at DESC, id
    `
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, persistenceError(err, "list subscriptions")
	}
	defer rows.Close()

	subs := make([]*domain.Subscription, 0)
	for rows.Next() {
		sub, err := scanPostgresSubscription(rows)
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

// UpdateSubscription writes the lifecycle fields of sub if the stored version
// still equals expectedVersion. On success sub.Version is advanced.
func (r *PostgresRepository) UpdateSubscription(ctx context.Context, sub *domain.Subscription, expectedVersion int64) error {
	query := `
        UPDATE subscriptions SET
            status = $3,
            pause_start_date = $4,
            pause_end_date = $5,
            cancelled_at = $6,
            reactivated_at = $7,
            updated_at = $8,
            version = version + 1
        WHERE id = $1 AND version = $2
    `
	tag, err := r.db.Exec(ctx, query,
		sub.ID,
		expectedVersion,
		string(sub.Status),
		sub.PauseStart,
		sub.PauseEnd,
		sub.CancelledAt,
		sub.ReactivatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return persistenceError(err, "update subscription")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1)`, sub.ID).Scan(&exists); err != nil {
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

const testimonialColumns = `id, user_id, name, message, rating, location, approved, created_at`

func scanPostgresTestimonial(row pgx.Row) (*domain.Testimonial, error) {
	var t domain.Testimonial
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Message, &t.Rating, &t.Location, &t.Approved, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

// CreateTestimonial inserts a testimonial awaiting moderation.
func (r *PostgresRepository) CreateTestimonial(ctx context.Context, t *domain.Testimonial) error {
	query := `INSERT INTO testimonials (` + testimonialColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query, t.ID, t.OwnerID, t.Name, t.Message, t.Rating, t.Location, t.Approved, t.CreatedAt)
	if err != nil {
		return persistenceError(err, "insert testimonial")
	}
	return nil
}

// ListTestimonials returns testimonials matching filter, newest first.
func (r *PostgresRepository) ListTestimonials(ctx context.Context, filter domain.TestimonialFilter) ([]*domain.Testimonial, error) {
	query := `
        SELECT ` + testimonialColumns + `
        FROM testimonials
        WHERE ($1 = '' OR user_id = $1) AND (NOT $2 OR approved)
        ORDER BY created_at DESC, id
    `
	rows, err := r.db.Query(ctx, query, filter.OwnerID, filter.ApprovedOnly)
	if err != nil {
		return nil, persistenceError(err, "list testimonials")
	}
	defer rows.Close()

	out := make([]*domain.Testimonial, 0)
	for rows.Next() {
		t, err := scanPostgresTestimonial(rows)
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

// ApproveTestimonial marks a testimonial as publicly visible.
func (r *PostgresRepository) ApproveTestimonial(ctx context.Context, id uuid.UUID) (*domain.Testimonial, error) {
	query := `UPDATE testimonials SET approved = TRUE WHERE id = $1 RETURNING ` + testimonialColumns
	t, err := scanPostgresTestimonial(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestimonialNotFound
		}
		return nil, persistenceError(err, "approve testimonial")
	}
	return t, nil
}

func stringsOf[T ~string](in []T) []string {
	return lo.Map(in, func(v T, _ int) string { return string(v) })
}

func normalizeTimes(sub *domain.Subscription) {
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	for _, t := range []**time.Time{&sub.CancelledAt, &sub.ReactivatedAt} {
		if *t != nil {
			v := (**t).UTC()
			*t = &v
		}
	}
	for _, t := range []**time.Time{&sub.PauseStart, &sub.PauseEnd} {
		if *t != nil {
			v := domain.Day(**t)
			*t = &v
		}
	}
}
