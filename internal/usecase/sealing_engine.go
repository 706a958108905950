package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
	cryptoinfra "github.com/CapTomas/Proofo-sub002/internal/infra/crypto"
)

const maxSignatureBytes = 1 << 20

// SealingEngine orchestrates the confirmation of a deal: token validation,
// trust-gate re-check, signature capture, seal computation, and the atomic
// transition to confirmed. It also recomputes seals for independent
// verification.
type SealingEngine struct {
	Deals         DealRepository
	Verifications VerificationRepository
	Tokens        *TokenProtocol
	Verifier      *VerificationService
	Audit         *AuditEmitter
	Signatures    domain.SignatureStore
	Limiter       domain.RateLimiter
	RateLimit     RateLimitPolicy
	Clock         Clock
	Log           *zap.Logger
}

// ConfirmDeal executes the pending -> confirmed transition. Everything
// after signature upload happens in one store transaction: claiming the
// pending deal, consuming the token, persisting seal and signature
// reference, and appending the deal_signed/deal_confirmed entries. A
// concurrent confirm or void loses the conditional claim and surfaces
// domain.ErrDealNotAvailable without touching the stored seal.
func (e *SealingEngine) ConfirmDeal(ctx context.Context, rc domain.RequestContext, dealID, token string, signature []byte) (*domain.Deal, error) {
	if len(signature) == 0 {
		return nil, fmt.Errorf("%w: signature is required", domain.ErrValidation)
	}
	if len(signature) > maxSignatureBytes {
		return nil, fmt.Errorf("%w: signature image too large", domain.ErrValidation)
	}
	deal, err := e.Deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, domain.ErrNotFound
	}
	if deal.Status != domain.DealStatusPending {
		return nil, domain.ErrDealNotAvailable
	}
	if err := allowRate(ctx, e.Limiter, e.RateLimit, domain.RateBucketDealConfirm, dealID); err != nil {
		return nil, err
	}
	if !e.Tokens.ValidateForSigning(ctx, deal, token) {
		// Deliberately generic: the caller never learns whether the token
		// was wrong, expired, or already consumed.
		return nil, domain.ErrNotAuthorized
	}
	if err := e.Verifier.ApplyTrustedIdentity(ctx, rc, deal); err != nil {
		return nil, err
	}
	ok, err := e.Verifier.CanSign(ctx, deal)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrCannotSign
	}

	signatureRef, err := e.Signatures.Put(ctx, deal.ID, signature)
	if err != nil {
		return nil, err
	}

	records, err := e.Verifications.ListByDeal(ctx, deal.ID)
	if err != nil {
		return nil, err
	}
	confirmedAt := e.now().UTC().Truncate(time.Second)
	seal, err := cryptoinfra.ComputeSeal(deal.ID, deal.Terms, signatureRef, confirmedAt, records)
	if err != nil {
		return nil, err
	}

	signed, err := PrepareAuditEntry(domain.AuditEntry{
		DealID:    deal.ID,
		EventType: domain.AuditEventDealSigned,
		ActorType: rc.ActorType(deal.CreatorID),
		ActorID:   rc.UserID,
		Metadata:  domain.DealSignedMeta{SignatureURL: signatureRef},
	}, confirmedAt)
	if err != nil {
		return nil, err
	}
	confirmed, err := PrepareAuditEntry(domain.AuditEntry{
		DealID:    deal.ID,
		EventType: domain.AuditEventDealConfirmed,
		ActorType: rc.ActorType(deal.CreatorID),
		ActorID:   rc.UserID,
		Metadata:  domain.DealConfirmedMeta{Seal: seal, VerificationCount: len(records)},
	}, confirmedAt)
	if err != nil {
		return nil, err
	}

	sealed, err := e.Deals.Confirm(ctx, deal.ID, domain.DealConfirmation{
		Seal:         seal,
		SignatureURL: signatureRef,
		ConfirmedAt:  confirmedAt,
		TokenValue:   token,
		AuditEntries: []domain.AuditEntry{signed, confirmed},
	})
	if err != nil {
		return nil, err
	}
	if e.Log != nil {
		e.Log.Info("deal sealed",
			zap.String("deal_id", deal.ID),
			zap.String("seal", seal))
	}
	return sealed, nil
}

// GetSignatureLink resolves a short-lived download URL for the signature
// image of a confirmed deal. The creator or a holder of a token valid for
// viewing may fetch it; the stored object reference itself never leaves
// the service.
func (e *SealingEngine) GetSignatureLink(ctx context.Context, rc domain.RequestContext, dealID, token string) (string, error) {
	deal, err := e.Deals.GetByID(ctx, dealID)
	if err != nil {
		return "", err
	}
	if deal == nil {
		return "", domain.ErrNotFound
	}
	isCreator := rc.Authenticated() && rc.UserID == deal.CreatorID
	if !isCreator && !e.Tokens.ValidateForViewing(ctx, deal, token) {
		return "", domain.ErrNotAuthorized
	}
	if !deal.Confirmed() || deal.SignatureURL == "" {
		return "", domain.ErrDealNotAvailable
	}
	return e.Signatures.PresignGet(ctx, deal.SignatureURL)
}

// VerifySeal recomputes a confirmed deal's seal from its stored terms,
// signature reference, verifications and confirmation time, and compares
// byte-for-byte against the stored value. A mismatch signals tampering (or
// a canonicalization bug); it is a legitimate verification outcome, not a
// system error.
func (e *SealingEngine) VerifySeal(ctx context.Context, dealID string) (bool, error) {
	deal, err := e.Deals.GetByID(ctx, dealID)
	if err != nil {
		return false, err
	}
	if deal == nil {
		return false, domain.ErrNotFound
	}
	if !deal.Confirmed() || deal.ConfirmedAt == nil || deal.DealSeal == "" {
		return false, domain.ErrDealNotAvailable
	}
	records, err := e.Verifications.ListByDeal(ctx, dealID)
	if err != nil {
		return false, err
	}
	recomputed, err := cryptoinfra.ComputeSeal(deal.ID, deal.Terms, deal.SignatureURL, *deal.ConfirmedAt, records)
	if err != nil {
		return false, err
	}
	match := recomputed == deal.DealSeal
	if err := e.Audit.EmitDealVerified(ctx, dealID, match); err != nil {
		return false, err
	}
	return match, nil
}

func (e *SealingEngine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}
