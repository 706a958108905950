package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

type CodeRepository struct {
	db *gorm.DB
}

func NewCodeRepository(db *gorm.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

func (r *CodeRepository) Create(ctx context.Context, code domain.OneTimeCode) error {
	if r.db == nil {
		return errDBUnavailable
	}
	id := code.ID
	if id == "" {
		var err error
		id, err = newUUID()
		if err != nil {
			return err
		}
	}
	model := OneTimeCodeModel{
		ID:        id,
		DealID:    code.DealID,
		Type:      string(code.Type),
		Target:    code.Target,
		CodeHash:  code.CodeHash,
		Consumed:  code.Consumed,
		ExpiresAt: code.ExpiresAt.UTC(),
		CreatedAt: code.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *CodeRepository) GetActive(ctx context.Context, dealID string, codeType domain.VerificationType, target string, now time.Time) (*domain.OneTimeCode, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model OneTimeCodeModel
	err := r.db.WithContext(ctx).
		Where("deal_id = ? AND type = ? AND target = ? AND consumed = false AND expires_at > ?",
			dealID, string(codeType), target, now.UTC()).
		Order("created_at DESC").
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	code := codeFromModel(model)
	return &code, nil
}

// Consume flips the consumption flag with a conditional write so a code
// can only ever be redeemed once, even under concurrent attempts.
func (r *CodeRepository) Consume(ctx context.Context, codeID string) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	res := r.db.WithContext(ctx).Model(&OneTimeCodeModel{}).
		Where("id = ? AND consumed = false", codeID).
		Update("consumed", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func codeFromModel(model OneTimeCodeModel) domain.OneTimeCode {
	return domain.OneTimeCode{
		ID:        model.ID,
		DealID:    model.DealID,
		Type:      domain.VerificationType(model.Type),
		Target:    model.Target,
		CodeHash:  model.CodeHash,
		Consumed:  model.Consumed,
		ExpiresAt: model.ExpiresAt.UTC(),
		CreatedAt: model.CreatedAt.UTC(),
	}
}
