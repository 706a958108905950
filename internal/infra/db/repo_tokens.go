package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) GetByDeal(ctx context.Context, dealID string) (*domain.AccessToken, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model AccessTokenModel
	err := r.db.WithContext(ctx).Where("deal_id = ?", dealID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	token := tokenFromModel(model)
	return &token, nil
}

func tokenModelFromDomain(token domain.AccessToken) (AccessTokenModel, error) {
	id, err := newUUID()
	if err != nil {
		return AccessTokenModel{}, err
	}
	return AccessTokenModel{
		ID:        id,
		DealID:    token.DealID,
		Token:     token.Token,
		State:     string(token.State),
		ExpiresAt: token.ExpiresAt.UTC(),
		CreatedAt: token.CreatedAt.UTC(),
		UsedAt:    token.UsedAt,
	}, nil
}

func tokenFromModel(model AccessTokenModel) domain.AccessToken {
	return domain.AccessToken{
		DealID:    model.DealID,
		Token:     model.Token,
		State:     domain.TokenState(model.State),
		ExpiresAt: model.ExpiresAt.UTC(),
		CreatedAt: model.CreatedAt.UTC(),
		UsedAt:    model.UsedAt,
	}
}
