package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

type DealRepository struct {
	db *gorm.DB
}

func NewDealRepository(db *gorm.DB) *DealRepository {
	return &DealRepository{db: db}
}

func (r *DealRepository) CreateWithToken(ctx context.Context, deal domain.Deal, token domain.AccessToken, created domain.AuditEntry) error {
	if r.db == nil {
		return errDBUnavailable
	}
	dealModel, err := dealModelFromDomain(deal)
	if err != nil {
		return err
	}
	tokenModel, err := tokenModelFromDomain(token)
	if err != nil {
		return err
	}
	entryModel, err := auditModelFromDomain(created)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dealModel).Error; err != nil {
			return err
		}
		if err := tx.Create(&tokenModel).Error; err != nil {
			return err
		}
		return tx.Create(&entryModel).Error
	})
}

func (r *DealRepository) GetByID(ctx context.Context, id string) (*domain.Deal, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *DealRepository) GetByPublicID(ctx context.Context, publicID string) (*domain.Deal, error) {
	return r.getOne(ctx, "public_id = ?", publicID)
}

func (r *DealRepository) getOne(ctx context.Context, query string, arg any) (*domain.Deal, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model DealModel
	err := r.db.WithContext(ctx).Where(query, arg).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	deal, err := dealFromModel(model)
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// MarkViewed stamps the first-view timestamp with a conditional write so
// only one view ever sets it.
func (r *DealRepository) MarkViewed(ctx context.Context, dealID string, at time.Time) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	res := r.db.WithContext(ctx).Model(&DealModel{}).
		Where("id = ? AND viewed_at IS NULL", dealID).
		Update("viewed_at", at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *DealRepository) SetLastNudged(ctx context.Context, dealID string, at time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Model(&DealModel{}).
		Where("id = ?", dealID).
		Update("last_nudged_at", at.UTC()).Error
}

// Void performs the pending -> voided transition and the audit append in
// one transaction. The conditional status guard makes void and confirm
// mutually exclusive.
func (r *DealRepository) Void(ctx context.Context, dealID string, at time.Time, entry domain.AuditEntry) error {
	if r.db == nil {
		return errDBUnavailable
	}
	entryModel, err := auditModelFromDomain(entry)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&DealModel{}).
			Where("id = ? AND status = ?", dealID, string(domain.DealStatusPending)).
			Updates(map[string]any{
				"status":    string(domain.DealStatusVoided),
				"voided_at": at.UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrDealNotAvailable
		}
		return tx.Create(&entryModel).Error
	})
}

// Confirm is the atomic confirmation unit. Inside one transaction it
// claims the pending deal (pending -> sealing), consumes the unused token,
// writes seal/signature/confirmation time, and appends the audit entries.
// The sealing marker never escapes the transaction: concurrent readers see
// pending until the commit flips the row straight to confirmed.
func (r *DealRepository) Confirm(ctx context.Context, dealID string, c domain.DealConfirmation) (*domain.Deal, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	entryModels := make([]AuditLogEntryModel, 0, len(c.AuditEntries))
	for _, entry := range c.AuditEntries {
		model, err := auditModelFromDomain(entry)
		if err != nil {
			return nil, err
		}
		entryModels = append(entryModels, model)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&DealModel{}).
			Where("id = ? AND status = ?", dealID, string(domain.DealStatusPending)).
			Update("status", string(domain.DealStatusSealing))
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return domain.ErrDealNotAvailable
		}

		consume := tx.Model(&AccessTokenModel{}).
			Where("deal_id = ? AND token = ? AND state = ?", dealID, c.TokenValue, string(domain.TokenStateUnused)).
			Updates(map[string]any{
				"state":   string(domain.TokenStateUsed),
				"used_at": c.ConfirmedAt.UTC(),
			})
		if consume.Error != nil {
			return consume.Error
		}
		if consume.RowsAffected == 0 {
			return domain.ErrNotAuthorized
		}

		seal := tx.Model(&DealModel{}).
			Where("id = ? AND status = ?", dealID, string(domain.DealStatusSealing)).
			Updates(map[string]any{
				"status":        string(domain.DealStatusConfirmed),
				"confirmed_at":  c.ConfirmedAt.UTC(),
				"deal_seal":     c.Seal,
				"signature_url": c.SignatureURL,
			})
		if seal.Error != nil {
			return seal.Error
		}
		if seal.RowsAffected == 0 {
			return fmt.Errorf("lost sealing claim for deal %s", dealID)
		}

		for i := range entryModels {
			if err := tx.Create(&entryModels[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, dealID)
}

func dealModelFromDomain(deal domain.Deal) (DealModel, error) {
	terms, err := json.Marshal(deal.Terms)
	if err != nil {
		return DealModel{}, err
	}
	return DealModel{
		ID:              deal.ID,
		PublicID:        deal.PublicID,
		CreatorID:       deal.CreatorID,
		RecipientName:   deal.RecipientName,
		RecipientUserID: stringPtrIfNotEmpty(deal.RecipientUserID),
		RecipientEmail:  stringPtrIfNotEmpty(deal.RecipientEmail),
		Title:           deal.Title,
		TermsJSON:       terms,
		TrustLevel:      string(deal.TrustLevel),
		Status:          string(deal.Status),
		CreatedAt:       deal.CreatedAt.UTC(),
		ViewedAt:        deal.ViewedAt,
		ConfirmedAt:     deal.ConfirmedAt,
		VoidedAt:        deal.VoidedAt,
		LastNudgedAt:    deal.LastNudgedAt,
		SignatureURL:    stringPtrIfNotEmpty(deal.SignatureURL),
		DealSeal:        stringPtrIfNotEmpty(deal.DealSeal),
	}, nil
}

func dealFromModel(model DealModel) (domain.Deal, error) {
	var terms []domain.Term
	if len(model.TermsJSON) > 0 {
		if err := json.Unmarshal(model.TermsJSON, &terms); err != nil {
			return domain.Deal{}, err
		}
	}
	return domain.Deal{
		ID:              model.ID,
		PublicID:        model.PublicID,
		CreatorID:       model.CreatorID,
		RecipientName:   model.RecipientName,
		RecipientUserID: stringValue(model.RecipientUserID),
		RecipientEmail:  stringValue(model.RecipientEmail),
		Title:           model.Title,
		Terms:           terms,
		TrustLevel:      domain.TrustLevel(model.TrustLevel),
		Status:          domain.DealStatus(model.Status),
		CreatedAt:       model.CreatedAt.UTC(),
		ViewedAt:        model.ViewedAt,
		ConfirmedAt:     model.ConfirmedAt,
		VoidedAt:        model.VoidedAt,
		LastNudgedAt:    model.LastNudgedAt,
		SignatureURL:    stringValue(model.SignatureURL),
		DealSeal:        stringValue(model.DealSeal),
	}, nil
}
