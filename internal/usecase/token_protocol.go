package usecase

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
	cryptoinfra "github.com/CapTomas/Proofo-sub002/internal/infra/crypto"
)

// TokenProtocol owns the single-use access token that authorizes an
// otherwise-anonymous recipient against one specific deal.
type TokenProtocol struct {
	Tokens TokenRepository
	Audit  *AuditEmitter
	Clock  Clock
}

func NewTokenProtocol(tokens TokenRepository, audit *AuditEmitter, clock Clock) *TokenProtocol {
	return &TokenProtocol{Tokens: tokens, Audit: audit, Clock: clock}
}

// Issue builds a fresh token for a deal being created. The caller persists
// it alongside the deal.
func (p *TokenProtocol) Issue(dealID string) (domain.AccessToken, error) {
	value, err := cryptoinfra.GenerateAccessToken()
	if err != nil {
		return domain.AccessToken{}, err
	}
	now := p.now()
	return domain.AccessToken{
		DealID:    dealID,
		Token:     value,
		State:     domain.TokenStateUnused,
		ExpiresAt: now.Add(domain.AccessTokenLifetime),
		CreatedAt: now,
	}, nil
}

// ValidateForSigning reports whether the token may authorize a confirm on
// this deal right now: it must belong to the deal, be unexpired, unused,
// and the deal must still be pending. Validation is always scoped to the
// (deal, token) pair; a token for another deal never passes even if its
// raw value were known.
func (p *TokenProtocol) ValidateForSigning(ctx context.Context, deal *domain.Deal, token string) bool {
	if deal == nil {
		return false
	}
	ok := p.check(ctx, deal, token, false)
	if p.Audit != nil {
		_ = p.Audit.EmitTokenChecked(ctx, deal.ID, "", "signing", ok)
	}
	return ok
}

// ValidateForViewing accepts everything ValidateForSigning accepts, plus a
// consumed token against a confirmed deal: having signed remains proof
// enough to re-view the sealed result. Every outcome, allowed or denied,
// leaves a token_validated entry.
func (p *TokenProtocol) ValidateForViewing(ctx context.Context, deal *domain.Deal, token string) bool {
	if deal == nil {
		return false
	}
	ok := p.check(ctx, deal, token, true)
	if p.Audit != nil {
		_ = p.Audit.EmitTokenChecked(ctx, deal.ID, "", "viewing", ok)
	}
	return ok
}

// GetForDeal returns the deal's single access token, or nil when none
// exists.
func (p *TokenProtocol) GetForDeal(ctx context.Context, dealID string) (*domain.AccessToken, error) {
	return p.Tokens.GetByDeal(ctx, dealID)
}

func (p *TokenProtocol) check(ctx context.Context, deal *domain.Deal, token string, viewing bool) bool {
	if deal == nil || token == "" {
		return false
	}
	stored, err := p.Tokens.GetByDeal(ctx, deal.ID)
	if err != nil || stored == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(stored.Token), []byte(token)) != 1 {
		return false
	}
	if stored.State == domain.TokenStateUnused && !stored.Expired(p.now()) && deal.Status == domain.DealStatusPending {
		return true
	}
	if viewing && stored.State == domain.TokenStateUsed && deal.Status == domain.DealStatusConfirmed {
		return true
	}
	return false
}

func (p *TokenProtocol) now() time.Time {
	if p != nil && p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}
