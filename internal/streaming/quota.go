package streaming

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// QuotaTracker maintains the per-user daily skip counter. Both operations
// are single atomic read-modify-write statements, so concurrent requests
// from multiple devices of the same user cannot lose updates the way a
// fetch-then-save round trip would.
//
// Quota days are UTC calendar days: the original compared naive server-local
// dates, which is ambiguous across timezones.
type QuotaTracker struct {
	db DB
}

func NewQuotaTracker(db DB) *QuotaTracker {
	return &QuotaTracker{db: db}
}

// QuotaDay truncates t to its UTC calendar day.
func QuotaDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CheckAndRoll resets the counter when the stored day differs from today and
// returns the current count. The rollover is persisted even on a pure read.
func (q *QuotaTracker) CheckAndRoll(ctx context.Context, userID string, today time.Time) (int, error) {
	var skips int
	err := q.db.QueryRow(ctx, `
		UPDATE users
		SET skips_today = CASE WHEN last_skip_date IS DISTINCT FROM $2::date THEN 0 ELSE skips_today END,
		    last_skip_date = $2::date
		WHERE id = $1
		RETURNING skips_today
	`, userID, today).Scan(&skips)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return skips, nil
}

// Increment applies the same rollover and adds one skip, returning the new
// count.
func (q *QuotaTracker) Increment(ctx context.Context, userID string, today time.Time) (int, error) {
	var skips int
	err := q.db.QueryRow(ctx, `
		UPDATE users
		SET skips_today = CASE WHEN last_skip_date IS DISTINCT FROM $2::date THEN 1 ELSE skips_today + 1 END,
		    last_skip_date = $2::date
		WHERE id = $1
		RETURNING skips_today
	`, userID, today).Scan(&skips)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return skips, nil
}
