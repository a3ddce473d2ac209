// Package quota rejects requests before any expensive work runs.
package quota

import (
	"context"
	"fmt"
	"time"

	errs "lead-pipeline/internal/common/errors"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/common/metrics"
	"lead-pipeline/internal/models"

	"github.com/redis/go-redis/v9"
)

// AccountProvider is the identity/quota collaborator. GetAccount returns
// nil when the identity is unknown.
type AccountProvider interface {
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
}

type Guard struct {
	accounts       AccountProvider
	redis          *redis.Client
	limitPerMinute int
	logger         logger.Logger
	now            func() time.Time
}

// NewGuard builds a guard. A nil redis client or a non-positive limit
// disables the per-minute rate limit.
func NewGuard(accounts AccountProvider, rdb *redis.Client, limitPerMinute int, log logger.Logger) *Guard {
	return &Guard{
		accounts:       accounts,
		redis:          rdb,
		limitPerMinute: limitPerMinute,
		logger:         log.WithFields(map[string]interface{}{"component": "quota-guard"}),
		now:            time.Now,
	}
}

// Check returns the caller's account when onboarding is complete, a
// workspace exists, quota remains and the rate window has room.
// Rejections are typed and never retryable.
func (g *Guard) Check(ctx context.Context, identity models.Identity) (*models.Account, error) {
	account, err := g.accounts.GetAccount(ctx, identity.UserID)
	if err != nil {
		return nil, errs.NewQuotaCheckFailedError(err)
	}

	if err := g.evaluate(identity, account); err != nil {
		stdErr := errs.Normalize(err)
		metrics.QuotaRejections.WithLabelValues(string(stdErr.Code)).Inc()
		g.logger.Info("request rejected", map[string]interface{}{
			"userId": identity.UserID,
			"code":   string(stdErr.Code),
		})
		return nil, err
	}

	if err := g.allow(ctx, identity.UserID); err != nil {
		metrics.QuotaRejections.WithLabelValues(string(errs.ErrCodeRateLimited)).Inc()
		return nil, err
	}
	return account, nil
}

func (g *Guard) evaluate(identity models.Identity, account *models.Account) error {
	switch {
	case account == nil:
		return errs.NewWorkspaceNotFoundError(identity.UserID)
	case !account.OnboardingComplete:
		return errs.NewOnboardingRequiredError(identity.UserID)
	case account.WorkspaceID == "":
		return errs.NewWorkspaceNotFoundError(identity.UserID)
	case account.QuotaUsed >= account.QuotaLimit:
		return errs.NewQuotaExceededError(account.WorkspaceID, account.QuotaUsed, account.QuotaLimit)
	}
	return nil
}

// allow increments the caller's counter for the current minute. Counter
// store failures let the request through.
func (g *Guard) allow(ctx context.Context, userID string) error {
	if g.redis == nil || g.limitPerMinute <= 0 {
		return nil
	}

	window := g.now().UTC().Truncate(time.Minute)
	key := fmt.Sprintf("ratelimit:search:%s:%d", userID, window.Unix())

	pipe := g.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, time.Minute+5*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		g.logger.Warn("rate counter unavailable, allowing request", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil
	}

	if incr.Val() > int64(g.limitPerMinute) {
		return errs.NewRateLimitedError(userID, g.limitPerMinute)
	}
	return nil
}
