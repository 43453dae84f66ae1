// Package ratelimit throttles abusive patterns with sliding windows counted
// in PostgreSQL: invitations sent per organization and failed sign-ins per
// email address.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/esign-platform/repositories"
	"github.com/upb/esign-platform/services"
	"go.uber.org/zap"
)

// Rule allows at most Limit events per sliding Window.
type Rule struct {
	Window time.Duration
	Limit  int
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Violated  *Rule
}

// RetryAfter is how long until the violated window frees a slot.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || r.ResetAt.Before(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

// Service handles rate limiting using PostgreSQL
type Service struct {
	repo   repositories.RateLimitRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new Service instance
func NewService(repo repositories.RateLimitRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Check reports whether one more event for scope fits every rule. Rules
// with a non-positive limit or window are ignored.
func (s *Service) Check(ctx context.Context, scope string, rules []Rule) (*Result, error) {
	now := s.now()
	result := &Result{Allowed: true, Remaining: -1}

	for i := range rules {
		rule := rules[i]
		if rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}

		windowStart := now.Add(-rule.Window)
		count, err := s.repo.CountSince(ctx, scope, windowStart)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s window: %w", rule.Window, err)
		}

		if count >= rule.Limit {
			resetAt := now.Add(rule.Window)
			oldest, err := s.repo.OldestSince(ctx, scope, windowStart)
			switch {
			case err == nil:
				resetAt = oldest.Add(rule.Window)
			case !errors.Is(err, repositories.ErrNotFound):
				return nil, fmt.Errorf("failed to find %s window reset: %w", rule.Window, err)
			}
			return &Result{
				Allowed:  false,
				ResetAt:  resetAt,
				Violated: &rule,
			}, nil
		}

		if remaining := rule.Limit - count; result.Remaining < 0 || remaining < result.Remaining {
			result.Remaining = remaining
		}
	}

	return result, nil
}

// Record records an event for scope
func (s *Service) Record(ctx context.Context, scope string) error {
	if err := s.repo.Record(ctx, scope, s.now()); err != nil {
		return fmt.Errorf("failed to record rate limit event: %w", err)
	}
	return nil
}

// CleanupOldEvents removes events older than olderThan.
func (s *Service) CleanupOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)

	deleted, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old events: %w", err)
	}

	s.logger.Info("cleaned up old rate limit events",
		zap.Int64("rows_deleted", deleted),
		zap.Time("cutoff_time", cutoff))

	return deleted, nil
}

// StartCleanupWorker deletes events older than retention every interval
// until ctx is cancelled.
func (s *Service) StartCleanupWorker(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started rate limit cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			if _, err := s.CleanupOldEvents(ctx, retention); err != nil {
				s.logger.Error("failed to cleanup old events", zap.Error(err))
			}
		case <-ctx.Done():
			s.logger.Info("stopping rate limit cleanup worker")
			return
		}
	}
}

// Limiter applies a fixed set of rules to one family of scopes. It
// implements services.Throttle.
type Limiter struct {
	svc    *Service
	prefix string
	rules  []Rule
}

// NewLimiter creates a limiter whose scopes are prefix:key.
func (s *Service) NewLimiter(prefix string, rules ...Rule) *Limiter {
	return &Limiter{svc: s, prefix: prefix, rules: rules}
}

// Check returns services.ErrRateLimited, with a retry_after detail in
// seconds, when key has used up a window.
func (l *Limiter) Check(ctx context.Context, key string) error {
	result, err := l.svc.Check(ctx, l.scope(key), l.rules)
	if err != nil {
		return services.WrapInternal("rate limit check", err)
	}
	if result.Allowed {
		return nil
	}

	retryAfter := result.RetryAfter(l.svc.now())
	l.svc.logger.Warn("rate limit exceeded",
		zap.String("scope", l.scope(key)),
		zap.Int("limit", result.Violated.Limit),
		zap.Duration("window", result.Violated.Window),
		zap.Duration("retry_after", retryAfter))

	return services.ErrRateLimited.Wrap(nil).
		WithDetail("retry_after", int((retryAfter + time.Second - 1) / time.Second))
}

// Hit records one event for key. A failure is logged and otherwise ignored.
func (l *Limiter) Hit(ctx context.Context, key string) {
	if err := l.svc.Record(ctx, l.scope(key)); err != nil {
		l.svc.logger.Warn("failed to record rate limit event",
			zap.String("scope", l.scope(key)),
			zap.Error(err))
	}
}

func (l *Limiter) scope(key string) string {
	return l.prefix + ":" + key
}

var _ services.Throttle = (*Limiter)(nil)
