package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/upb/esign-platform/repositories"
	"go.uber.org/zap"
)

// RateLimitRepository implements the repositories.RateLimitRepository interface
type RateLimitRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRateLimitRepository creates a new rate limit repository
func NewRateLimitRepository(db *DB, logger *zap.Logger) repositories.RateLimitRepository {
	return &RateLimitRepository{
		db:     db,
		logger: logger,
	}
}

// Record records a rate limit event
func (r *RateLimitRepository) Record(ctx context.Context, scope string, at time.Time) error {
	query := `
		INSERT INTO rate_limit_events (scope_key, timestamp)
		VALUES ($1, $2)
	`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, scope, at); err != nil {
		return mapError(err, "insert rate limit event")
	}
	return nil
}

// CountSince counts the events of a scope inside a window
func (r *RateLimitRepository) CountSince(ctx context.Context, scope string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM rate_limit_events
		WHERE scope_key = $1
		  AND timestamp >= $2
	`

	var count int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, query, scope, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rate limit events: %w", err)
	}
	return count, nil
}

// OldestSince returns the first event of a scope inside a window
func (r *RateLimitRepository) OldestSince(ctx context.Context, scope string, since time.Time) (time.Time, error) {
	query := `
		SELECT timestamp
		FROM rate_limit_events
		WHERE scope_key = $1
		  AND timestamp >= $2
		ORDER BY timestamp ASC
		LIMIT 1
	`

	var oldest time.Time
	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query, scope, since).Scan(&oldest)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("no rate limit events for %s: %w", scope, repositories.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query oldest rate limit event: %w", err)
	}
	return oldest, nil
}

// DeleteBefore removes old rate limit events to keep the table size manageable
func (r *RateLimitRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM rate_limit_events
		WHERE timestamp < $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rate limit events: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
