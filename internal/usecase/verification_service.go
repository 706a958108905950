package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
	cryptoinfra "github.com/CapTomas/Proofo-sub002/internal/infra/crypto"
)

// VerificationService runs the tiered identity-verification gate: it
// issues and redeems one-time codes, maintains verification records, and
// answers whether a deal's trust level is satisfied.
type VerificationService struct {
	Deals         DealRepository
	Codes         CodeRepository
	Verifications VerificationRepository
	Trust         TrustEvaluator
	Audit         *AuditEmitter
	Notifier      domain.Notifier
	Limiter       domain.RateLimiter
	RateLimit     RateLimitPolicy
	Clock         Clock
	Log           *zap.Logger
}

// IssueCode generates a one-time code for the (deal, channel, target)
// tuple, stores only its hash with a 10-minute expiry, and hands the raw
// code to the notifier. The code is never returned to the caller.
func (s *VerificationService) IssueCode(ctx context.Context, rc domain.RequestContext, dealID string, channel domain.VerificationType, target string) error {
	if !channel.Valid() {
		return fmt.Errorf("%w: unknown verification type", domain.ErrValidation)
	}
	if target == "" || len(target) > 320 {
		return fmt.Errorf("%w: invalid verification target", domain.ErrValidation)
	}
	deal, err := s.Deals.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if deal == nil || deal.Status != domain.DealStatusPending {
		return domain.ErrDealNotAvailable
	}
	if err := allowRate(ctx, s.Limiter, s.RateLimit, domain.RateBucketOTPIssue, dealID); err != nil {
		return err
	}

	raw, err := cryptoinfra.GenerateOneTimeCode()
	if err != nil {
		return err
	}
	now := s.now()
	code := domain.OneTimeCode{
		ID:        uuid.NewString(),
		DealID:    dealID,
		Type:      channel,
		Target:    target,
		CodeHash:  cryptoinfra.HashCode(raw),
		ExpiresAt: now.Add(domain.OneTimeCodeLifetime),
		CreatedAt: now,
	}
	if err := s.Codes.Create(ctx, code); err != nil {
		return err
	}
	if err := s.Audit.EmitOTPSent(ctx, dealID, channel, MaskTarget(target)); err != nil {
		return err
	}

	// Delivery is fire-and-forget: the stored code stays valid even if the
	// send fails.
	if s.Notifier != nil {
		if err := s.Notifier.SendCode(ctx, channel, target, raw); err != nil && s.Log != nil {
			s.Log.Warn("one-time code delivery failed",
				zap.String("deal_id", dealID),
				zap.String("channel", string(channel)),
				zap.Error(err))
		}
	}
	return nil
}

// VerifyCode redeems a one-time code. On success it consumes the code and
// upserts the verification record; on any failure it reports false without
// revealing whether the code was wrong, expired, or already used.
func (s *VerificationService) VerifyCode(ctx context.Context, rc domain.RequestContext, dealID string, channel domain.VerificationType, target, code string) (bool, error) {
	if !channel.Valid() || target == "" || code == "" {
		return false, nil
	}
	now := s.now()
	stored, err := s.Codes.GetActive(ctx, dealID, channel, target, now)
	if err != nil {
		return false, err
	}
	if stored == nil {
		return false, nil
	}
	if !cryptoinfra.CodeHashEqual(stored.CodeHash, cryptoinfra.HashCode(code)) {
		return false, nil
	}
	consumed, err := s.Codes.Consume(ctx, stored.ID)
	if err != nil {
		return false, err
	}
	if !consumed {
		// Replay of an already-redeemed code.
		return false, nil
	}
	record := domain.VerificationRecord{
		DealID:        dealID,
		Type:          channel,
		VerifiedValue: target,
		Method:        domain.VerificationMethodOTP,
		VerifiedAt:    now,
	}
	if err := s.Verifications.Upsert(ctx, record); err != nil {
		return false, err
	}
	if err := s.Audit.EmitChannelVerified(ctx, dealID, channel, domain.VerificationMethodOTP); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyTrustedIdentity satisfies a required email proof from the caller's
// platform-verified identity. The bypass still writes a verification
// record so the seal computation sees it.
func (s *VerificationService) ApplyTrustedIdentity(ctx context.Context, rc domain.RequestContext, deal *domain.Deal) error {
	if !rc.Authenticated() || rc.VerifiedEmail == "" {
		return nil
	}
	if deal.RecipientEmail == "" || rc.VerifiedEmail != deal.RecipientEmail {
		return nil
	}
	requirements, err := s.requirements(ctx, deal.TrustLevel)
	if err != nil {
		return err
	}
	if !requirements.EmailRequired {
		return nil
	}
	records, err := s.Verifications.ListByDeal(ctx, deal.ID)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.Type == domain.VerificationEmail {
			return nil
		}
	}
	record := domain.VerificationRecord{
		DealID:        deal.ID,
		Type:          domain.VerificationEmail,
		VerifiedValue: rc.VerifiedEmail,
		Method:        domain.VerificationMethodAccount,
		VerifiedAt:    s.now(),
	}
	if err := s.Verifications.Upsert(ctx, record); err != nil {
		return err
	}
	return s.Audit.EmitChannelVerified(ctx, deal.ID, domain.VerificationEmail, domain.VerificationMethodAccount)
}

// CanSign evaluates the deal's trust level against its verification
// records.
func (s *VerificationService) CanSign(ctx context.Context, deal *domain.Deal) (bool, error) {
	requirements, err := s.requirements(ctx, deal.TrustLevel)
	if err != nil {
		return false, err
	}
	records, err := s.Verifications.ListByDeal(ctx, deal.ID)
	if err != nil {
		return false, err
	}
	return requirements.Satisfied(records), nil
}

func (s *VerificationService) requirements(ctx context.Context, level domain.TrustLevel) (domain.TrustRequirements, error) {
	if s.Trust != nil {
		return s.Trust.Requirements(ctx, level)
	}
	return RequirementsFor(level), nil
}

func (s *VerificationService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}
