package db

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

type VerificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Upsert relies on the (deal_id, type) unique index so re-verifying a
// channel replaces the earlier record instead of stacking duplicates.
func (r *VerificationRepository) Upsert(ctx context.Context, record domain.VerificationRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	id, err := newUUID()
	if err != nil {
		return err
	}
	model := VerificationRecordModel{
		ID:            id,
		DealID:        record.DealID,
		Type:          string(record.Type),
		VerifiedValue: record.VerifiedValue,
		Method:        string(record.Method),
		VerifiedAt:    record.VerifiedAt.UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "deal_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"verified_value", "method", "verified_at"}),
	}).Create(&model).Error
}

func (r *VerificationRepository) ListByDeal(ctx context.Context, dealID string) ([]domain.VerificationRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []VerificationRecordModel
	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("type ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	records := make([]domain.VerificationRecord, 0, len(models))
	for _, model := range models {
		records = append(records, domain.VerificationRecord{
			DealID:        model.DealID,
			Type:          domain.VerificationType(model.Type),
			VerifiedValue: model.VerifiedValue,
			Method:        domain.VerificationMethod(model.Method),
			VerifiedAt:    model.VerifiedAt.UTC(),
		})
	}
	return records, nil
}
