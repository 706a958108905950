package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
	"github.com/CapTomas/Proofo-sub002/internal/infra/ratelimit"
)

func TestCreateDealRateLimited(t *testing.T) {
	h := newHarness(t)
	h.deals.Limiter = ratelimit.NewMemory(ratelimit.MemoryConfig{})
	h.deals.RateLimit = RateLimitPolicy{Requests: 2, Window: time.Minute}

	h.createDeal(t, domain.TrustLevelBasic)
	h.createDeal(t, domain.TrustLevelBasic)
	_, err := h.deals.CreateDeal(context.Background(), creatorCtx(), CreateDealRequest{
		Title:      "One too many",
		Terms:      []domain.Term{{Label: "Scope", Value: "x", Type: domain.TermTypeText}},
		Recipient:  domain.NewEmailRecipient("Ana", "ana@example.com"),
		TrustLevel: domain.TrustLevelBasic,
	})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestIssueCodeRateLimitedWithoutStateChange(t *testing.T) {
	h := newHarness(t)
	h.verifier.Limiter = ratelimit.NewMemory(ratelimit.MemoryConfig{})
	h.verifier.RateLimit = RateLimitPolicy{Requests: 1, Window: time.Minute}
	ctx := context.Background()
	result := h.createDeal(t, domain.TrustLevelVerified)

	if err := h.verifier.IssueCode(ctx, recipientCtx(), result.Deal.ID, domain.VerificationEmail, "ana@example.com"); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	err := h.verifier.IssueCode(ctx, recipientCtx(), result.Deal.ID, domain.VerificationEmail, "ana@example.com")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	// The denied request must leave no trace.
	if got := countEvents(t, h, result.Deal.ID, domain.AuditEventEmailOTPSent); got != 1 {
		t.Fatalf("expected 1 email_otp_sent entry, got %d", got)
	}
}

func TestRateLimitBucketOverride(t *testing.T) {
	h := newHarness(t)
	limiter := ratelimit.NewMemory(ratelimit.MemoryConfig{})
	policy := RateLimitPolicy{
		Requests:       10,
		BucketRequests: map[string]int{domain.RateBucketOTPIssue: 1},
		Window:         time.Minute,
	}
	h.deals.Limiter = limiter
	h.deals.RateLimit = policy
	h.verifier.Limiter = limiter
	h.verifier.RateLimit = policy
	ctx := context.Background()
	result := h.createDeal(t, domain.TrustLevelVerified)

	if err := h.verifier.IssueCode(ctx, recipientCtx(), result.Deal.ID, domain.VerificationEmail, "ana@example.com"); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	err := h.verifier.IssueCode(ctx, recipientCtx(), result.Deal.ID, domain.VerificationEmail, "ana@example.com")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("otp bucket override: expected ErrRateLimited, got %v", err)
	}
	// Deal creation stays on the default budget.
	h.createDeal(t, domain.TrustLevelBasic)
}

func TestRateLimitFailOpenByDefault(t *testing.T) {
	broken := brokenLimiter{}
	if err := allowRate(context.Background(), broken, RateLimitPolicy{Requests: 1, Window: time.Minute}, "bucket", "key"); err != nil {
		t.Fatalf("fail-open limiter error must be swallowed: %v", err)
	}
	err := allowRate(context.Background(), broken, RateLimitPolicy{Requests: 1, Window: time.Minute, FailClosed: true}, "bucket", "key")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("fail-closed must reject on limiter failure, got %v", err)
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int, time.Duration) (domain.RateLimitDecision, error) {
	return domain.RateLimitDecision{}, errors.New("limiter down")
}
