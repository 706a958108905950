package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

// Clock lets tests pin the protocol's notion of now.
type Clock func() time.Time

type DealRepository interface {
	// CreateWithToken inserts the deal, its access token and the creation
	// audit entry in one transaction.
	CreateWithToken(ctx context.Context, deal domain.Deal, token domain.AccessToken, created domain.AuditEntry) error
	GetByID(ctx context.Context, id string) (*domain.Deal, error)
	GetByPublicID(ctx context.Context, publicID string) (*domain.Deal, error)
	// MarkViewed sets ViewedAt once; it reports false when the deal was
	// already viewed.
	MarkViewed(ctx context.Context, dealID string, at time.Time) (bool, error)
	SetLastNudged(ctx context.Context, dealID string, at time.Time) error
	// Void transitions pending -> voided with a conditional write and
	// appends the audit entry in the same transaction. A deal that is not
	// pending yields domain.ErrDealNotAvailable.
	Void(ctx context.Context, dealID string, at time.Time, entry domain.AuditEntry) error
	// Confirm executes the atomic confirmation: claim the pending deal,
	// consume the unused token, persist seal/signature/timestamps, and
	// append the audit entries, all or nothing. Losers of a concurrent
	// confirm observe domain.ErrDealNotAvailable and never overwrite the
	// seal.
	Confirm(ctx context.Context, dealID string, confirmation domain.DealConfirmation) (*domain.Deal, error)
}

type TokenRepository interface {
	GetByDeal(ctx context.Context, dealID string) (*domain.AccessToken, error)
}

type VerificationRepository interface {
	// Upsert keeps at most one record per (deal, verification type).
	Upsert(ctx context.Context, record domain.VerificationRecord) error
	ListByDeal(ctx context.Context, dealID string) ([]domain.VerificationRecord, error)
}

type CodeRepository interface {
	Create(ctx context.Context, code domain.OneTimeCode) error
	// GetActive returns the newest unconsumed, unexpired code for the
	// (deal, type, target) tuple, or nil.
	GetActive(ctx context.Context, dealID string, codeType domain.VerificationType, target string, now time.Time) (*domain.OneTimeCode, error)
	// Consume flips the consumption flag exactly once; it reports false
	// when the code was already consumed.
	Consume(ctx context.Context, codeID string) (bool, error)
}

type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error)
	ListByDeal(ctx context.Context, dealID string) ([]domain.AuditEntry, error)
	CountByDealAndType(ctx context.Context, dealID string, eventType domain.AuditEventType) (int64, error)
}

// TrustEvaluator resolves a trust level to its required proofs. The static
// table is the default; an OPA bundle can be swapped in at startup.
type TrustEvaluator interface {
	Requirements(ctx context.Context, level domain.TrustLevel) (domain.TrustRequirements, error)
}

// RateLimitPolicy is the budget consulted before mutating entry points.
// Requests is the default per-window budget; BucketRequests overrides it
// for individual buckets (OTP issuance usually runs tighter than deal
// creation). A resolved budget <= 0 disables the bucket.
type RateLimitPolicy struct {
	Requests       int
	BucketRequests map[string]int
	Window         time.Duration
	FailClosed     bool
}

func (p RateLimitPolicy) limitFor(bucket string) int {
	if n, ok := p.BucketRequests[bucket]; ok {
		return n
	}
	return p.Requests
}

func allowRate(ctx context.Context, limiter domain.RateLimiter, policy RateLimitPolicy, bucket, key string) error {
	limit := policy.limitFor(bucket)
	if limiter == nil || limit <= 0 {
		return nil
	}
	decision, err := limiter.Allow(ctx, fmt.Sprintf("%s:%s", bucket, key), limit, policy.Window)
	if err != nil {
		if policy.FailClosed {
			return fmt.Errorf("%w: limiter unavailable", domain.ErrRateLimited)
		}
		return nil
	}
	if !decision.Allowed {
		return domain.ErrRateLimited
	}
	return nil
}
