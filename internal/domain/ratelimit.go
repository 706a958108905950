package domain

import (
	"context"
	"time"
)

// Rate-limit buckets consulted before mutating entry points. A deny is an
// immediate rejection with no state change.
const (
	RateBucketDealCreate  = "deal_create"
	RateBucketDealConfirm = "deal_confirm"
	RateBucketOTPIssue    = "otp_issue"
)

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
