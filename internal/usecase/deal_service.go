package usecase

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
	cryptoinfra "github.com/CapTomas/Proofo-sub002/internal/infra/crypto"
)

const (
	maxTitleLen     = 200
	maxTermLabelLen = 100
	maxTermValueLen = 1000
	maxTerms        = 50

	nudgeCooldown = 24 * time.Hour
)

// DealService owns the deal lifecycle outside of sealing: creation,
// viewing, voiding, nudging, and the audit trail read path.
type DealService struct {
	Deals     DealRepository
	Audit     AuditRepository
	Emitter   *AuditEmitter
	Tokens    *TokenProtocol
	Notifier  domain.Notifier
	Limiter   domain.RateLimiter
	RateLimit RateLimitPolicy
	Clock     Clock
	Log       *zap.Logger
}

type CreateDealRequest struct {
	Title      string
	Terms      []domain.Term
	Recipient  domain.Recipient
	TrustLevel domain.TrustLevel
}

type CreateDealResult struct {
	Deal  domain.Deal
	Token domain.AccessToken
}

// CreateDeal validates the draft, then inserts the deal, its single access
// token and the deal_created audit entry in one transaction.
func (s *DealService) CreateDeal(ctx context.Context, rc domain.RequestContext, req CreateDealRequest) (*CreateDealResult, error) {
	if !rc.Authenticated() {
		return nil, domain.ErrNotAuthorized
	}
	if err := validateDraft(req); err != nil {
		return nil, err
	}
	if err := allowRate(ctx, s.Limiter, s.RateLimit, domain.RateBucketDealCreate, rc.UserID); err != nil {
		return nil, err
	}

	publicID, err := cryptoinfra.GeneratePublicID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	deal := domain.Deal{
		ID:              uuid.NewString(),
		PublicID:        publicID,
		CreatorID:       rc.UserID,
		RecipientName:   req.Recipient.Name,
		RecipientEmail:  req.Recipient.Email,
		RecipientUserID: req.Recipient.UserID,
		Title:           req.Title,
		Terms:           req.Terms,
		TrustLevel:      req.TrustLevel,
		Status:          domain.DealStatusPending,
		CreatedAt:       now,
	}
	token, err := s.Tokens.Issue(deal.ID)
	if err != nil {
		return nil, err
	}
	created, err := PrepareAuditEntry(domain.AuditEntry{
		DealID:    deal.ID,
		EventType: domain.AuditEventDealCreated,
		ActorType: domain.AuditActorCreator,
		ActorID:   rc.UserID,
		Metadata: domain.DealCreatedMeta{
			PublicID:   publicID,
			TrustLevel: deal.TrustLevel,
			TermCount:  len(deal.Terms),
		},
	}, now)
	if err != nil {
		return nil, err
	}
	if err := s.Deals.CreateWithToken(ctx, deal, token, created); err != nil {
		return nil, err
	}

	if s.Notifier != nil && deal.RecipientEmail != "" {
		if err := s.Notifier.SendDealInvite(ctx, deal.RecipientEmail, deal.PublicID, token.Token); err != nil && s.Log != nil {
			s.Log.Warn("deal invite delivery failed",
				zap.String("deal_id", deal.ID),
				zap.Error(err))
		}
	}
	return &CreateDealResult{Deal: deal, Token: token}, nil
}

// GetDealByPublicID resolves a deal for display. Callers other than the
// creator must present a token valid for viewing. The first non-creator
// view stamps ViewedAt; every non-creator view appends a deal_viewed entry
// carrying a counter derived from the audit log itself.
func (s *DealService) GetDealByPublicID(ctx context.Context, rc domain.RequestContext, publicID, token string) (*domain.Deal, error) {
	deal, err := s.Deals.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, domain.ErrNotFound
	}
	isCreator := rc.Authenticated() && rc.UserID == deal.CreatorID
	if !isCreator {
		if !s.Tokens.ValidateForViewing(ctx, deal, token) {
			return nil, domain.ErrNotAuthorized
		}
		if err := s.recordView(ctx, rc, deal); err != nil {
			return nil, err
		}
	}
	return deal, nil
}

func (s *DealService) recordView(ctx context.Context, rc domain.RequestContext, deal *domain.Deal) error {
	now := s.now()
	first, err := s.Deals.MarkViewed(ctx, deal.ID, now)
	if err != nil {
		return err
	}
	if first {
		viewedAt := now
		deal.ViewedAt = &viewedAt
	}
	prior, err := s.Audit.CountByDealAndType(ctx, deal.ID, domain.AuditEventDealViewed)
	if err != nil {
		return err
	}
	_, err = s.Emitter.Emit(ctx, domain.AuditEntry{
		DealID:    deal.ID,
		EventType: domain.AuditEventDealViewed,
		ActorType: rc.ActorType(deal.CreatorID),
		ActorID:   rc.UserID,
		Metadata:  domain.DealViewedMeta{ViewCount: int(prior) + 1},
	})
	return err
}

// VoidDeal cancels a pending deal. Only the creator may void, void is
// final, and the pending guard is enforced with a conditional write so a
// racing confirm cannot interleave.
func (s *DealService) VoidDeal(ctx context.Context, rc domain.RequestContext, dealID string) (*domain.Deal, error) {
	deal, err := s.Deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, domain.ErrNotFound
	}
	if !rc.Authenticated() || rc.UserID != deal.CreatorID {
		return nil, domain.ErrNotAuthorized
	}
	now := s.now()
	entry, err := PrepareAuditEntry(domain.AuditEntry{
		DealID:    dealID,
		EventType: domain.AuditEventDealVoided,
		ActorType: domain.AuditActorCreator,
		ActorID:   rc.UserID,
		Metadata:  domain.DealVoidedMeta{},
	}, now)
	if err != nil {
		return nil, err
	}
	if err := s.Deals.Void(ctx, dealID, now, entry); err != nil {
		return nil, err
	}
	return s.Deals.GetByID(ctx, dealID)
}

// NudgeDeal re-sends the recipient invite for a pending deal, at most once
// per cooldown window.
func (s *DealService) NudgeDeal(ctx context.Context, rc domain.RequestContext, dealID string) error {
	deal, err := s.Deals.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if deal == nil {
		return domain.ErrNotFound
	}
	if !rc.Authenticated() || rc.UserID != deal.CreatorID {
		return domain.ErrNotAuthorized
	}
	if deal.Status != domain.DealStatusPending {
		return domain.ErrDealNotAvailable
	}
	if deal.RecipientEmail == "" {
		return fmt.Errorf("%w: deal has no recipient email", domain.ErrValidation)
	}
	now := s.now()
	if deal.LastNudgedAt != nil && now.Sub(*deal.LastNudgedAt) < nudgeCooldown {
		return fmt.Errorf("%w: nudge cooldown active", domain.ErrValidation)
	}
	token, err := s.Tokens.GetForDeal(ctx, dealID)
	if err != nil {
		return err
	}
	if token == nil {
		return domain.ErrNotFound
	}
	if err := s.Deals.SetLastNudged(ctx, dealID, now); err != nil {
		return err
	}
	if s.Notifier != nil {
		if err := s.Notifier.SendDealInvite(ctx, deal.RecipientEmail, deal.PublicID, token.Token); err != nil && s.Log != nil {
			s.Log.Warn("nudge delivery failed", zap.String("deal_id", dealID), zap.Error(err))
		}
	}
	return nil
}

// GetAuditTrail returns the deal's event history, ordered by creation
// time, to the creator or to a holder of a token valid for viewing.
func (s *DealService) GetAuditTrail(ctx context.Context, rc domain.RequestContext, dealID, token string) ([]domain.AuditEntry, error) {
	deal, err := s.Deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, domain.ErrNotFound
	}
	isCreator := rc.Authenticated() && rc.UserID == deal.CreatorID
	if !isCreator && !s.Tokens.ValidateForViewing(ctx, deal, token) {
		return nil, domain.ErrNotAuthorized
	}
	return s.Audit.ListByDeal(ctx, dealID)
}

func (s *DealService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}

func validateDraft(req CreateDealRequest) error {
	if req.Title == "" || len(req.Title) > maxTitleLen {
		return fmt.Errorf("%w: title must be 1-%d characters", domain.ErrValidation, maxTitleLen)
	}
	if len(req.Terms) == 0 || len(req.Terms) > maxTerms {
		return fmt.Errorf("%w: a deal needs 1-%d terms", domain.ErrValidation, maxTerms)
	}
	for i, t := range req.Terms {
		if t.Label == "" || len(t.Label) > maxTermLabelLen {
			return fmt.Errorf("%w: term %d has an invalid label", domain.ErrValidation, i)
		}
		if len(t.Value) > maxTermValueLen {
			return fmt.Errorf("%w: term %d value too large", domain.ErrValidation, i)
		}
		if !t.Type.Valid() {
			return fmt.Errorf("%w: term %d has an unknown type", domain.ErrValidation, i)
		}
	}
	if !req.TrustLevel.Valid() {
		return fmt.Errorf("%w: unknown trust level", domain.ErrValidation)
	}
	if err := req.Recipient.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if req.Recipient.Email != "" {
		if _, err := mail.ParseAddress(req.Recipient.Email); err != nil {
			return fmt.Errorf("%w: invalid recipient email", domain.ErrValidation)
		}
	}
	return nil
}
