package db

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if r.db == nil {
		return domain.AuditEntry{}, errDBUnavailable
	}
	model, err := auditModelFromDomain(entry)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.AuditEntry{}, err
	}
	return auditEntryFromModel(model)
}

func (r *AuditRepository) ListByDeal(ctx context.Context, dealID string) ([]domain.AuditEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditLogEntryModel
	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entries := make([]domain.AuditEntry, 0, len(models))
	for _, model := range models {
		entry, err := auditEntryFromModel(model)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *AuditRepository) CountByDealAndType(ctx context.Context, dealID string, eventType domain.AuditEventType) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&AuditLogEntryModel{}).
		Where("deal_id = ? AND event_type = ?", dealID, string(eventType)).
		Count(&count).Error
	return count, err
}

func auditModelFromDomain(entry domain.AuditEntry) (AuditLogEntryModel, error) {
	metadata, err := encodeAuditMetadata(entry.EventType, entry.Metadata)
	if err != nil {
		return AuditLogEntryModel{}, err
	}
	id := entry.ID
	if id == "" {
		id, err = newUUID()
		if err != nil {
			return AuditLogEntryModel{}, err
		}
	}
	return AuditLogEntryModel{
		ID:           id,
		DealID:       entry.DealID,
		EventType:    string(entry.EventType),
		ActorType:    string(entry.ActorType),
		ActorID:      stringPtrIfNotEmpty(entry.ActorID),
		MetadataJSON: metadata,
		CreatedAt:    entry.CreatedAt.UTC(),
	}, nil
}

func auditEntryFromModel(model AuditLogEntryModel) (domain.AuditEntry, error) {
	metadata, err := decodeAuditMetadata(domain.AuditEventType(model.EventType), model.MetadataJSON)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	return domain.AuditEntry{
		ID:        model.ID,
		DealID:    model.DealID,
		EventType: domain.AuditEventType(model.EventType),
		ActorType: domain.AuditActorType(model.ActorType),
		ActorID:   stringValue(model.ActorID),
		Metadata:  metadata,
		CreatedAt: model.CreatedAt.UTC(),
	}, nil
}

func encodeAuditMetadata(eventType domain.AuditEventType, metadata domain.AuditMetadata) ([]byte, error) {
	if metadata == nil {
		return nil, fmt.Errorf("audit entry %s has no metadata", eventType)
	}
	if got := metadata.AuditEventType(); got != eventType {
		return nil, fmt.Errorf("audit metadata tag %s does not match event type %s", got, eventType)
	}
	return json.Marshal(metadata)
}

// decodeAuditMetadata reverses the tagged-union encoding: the row's event
// type selects the concrete payload shape.
func decodeAuditMetadata(eventType domain.AuditEventType, raw []byte) (domain.AuditMetadata, error) {
	decode := func(into domain.AuditMetadata) (domain.AuditMetadata, error) {
		if err := json.Unmarshal(raw, into); err != nil {
			return nil, err
		}
		return into, nil
	}
	switch eventType {
	case domain.AuditEventDealCreated:
		meta, err := decode(&domain.DealCreatedMeta{})
		if err != nil {
			return nil, err
		}
		return *meta.(*domain.DealCreatedMeta), nil
	case domain.AuditEventDealViewed:
		meta, err := decode(&domain.DealViewedMeta{})
		if err != nil {
			return nil, err
		}
		return *meta.(*domain.DealViewedMeta), nil
	case domain.AuditEventDealSigned:
		meta, err := decode(&domain.DealSignedMeta{})
		if err != nil {
			return nil, err
		}
		return *meta.(*domain.DealSignedMeta), nil
	case domain.AuditEventDealConfirmed:
		meta, err := decode(&domain.DealConfirmedMeta{})
		if err != nil {
			return nil, err
		}
		return *meta.(*domain.DealConfirmedMeta), nil
	case domain.AuditEventDealVoided:
		return domain.DealVoidedMeta{}, nil
	case domain.AuditEventEmailOTPSent, domain.AuditEventPhoneOTPSent:
		meta, err := decode(&domain.OTPSentMeta{})
		if err != nil {
			return nil, err
		}
		return *meta.(*domain.OTPSentMeta), nil
	case domain.AuditEventEmailVerified, domain.AuditEventPhoneVerified:
		meta, err := decode(&domain.ChannelVerifiedMeta{})
		if err != nil {
			return nil, err
		}
		return *meta.(*domain.ChannelVerifiedMeta), nil
	case domain.AuditEventTokenChecked:
		meta, err := decode(&domain.TokenCheckedMeta{})
		if err != nil {
			return nil, err
		}
		return *meta.(*domain.TokenCheckedMeta), nil
	case domain.AuditEventDealVerified:
		meta, err := decode(&domain.DealVerifiedMeta{})
		if err != nil {
			return nil, err
		}
		return *meta.(*domain.DealVerifiedMeta), nil
	}
	return nil, fmt.Errorf("unknown audit event type %q", eventType)
}
