package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

// AuditEmitter is the single write path into the append-only audit log.
// It stamps timestamps and enforces that every entry's metadata tag agrees
// with its event type.
type AuditEmitter struct {
	Repo  AuditRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{Repo: repo, Clock: clock}
}

func (e *AuditEmitter) Emit(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEntry{}, errors.New("audit repository required")
	}
	prepared, err := PrepareAuditEntry(entry, e.now())
	if err != nil {
		return domain.AuditEntry{}, err
	}
	return e.Repo.Append(ctx, prepared)
}

// PrepareAuditEntry validates and timestamps an entry without persisting
// it, for callers that append entries inside a store transaction.
func PrepareAuditEntry(entry domain.AuditEntry, now time.Time) (domain.AuditEntry, error) {
	if entry.DealID == "" {
		return domain.AuditEntry{}, errors.New("audit entry requires a deal id")
	}
	if entry.EventType == "" || entry.ActorType == "" {
		return domain.AuditEntry{}, errors.New("audit entry missing required fields")
	}
	if entry.Metadata == nil {
		return domain.AuditEntry{}, errors.New("audit entry requires metadata")
	}
	if got := entry.Metadata.AuditEventType(); got != entry.EventType {
		return domain.AuditEntry{}, fmt.Errorf("audit metadata tag %s does not match event type %s", got, entry.EventType)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now.UTC()
	} else {
		entry.CreatedAt = entry.CreatedAt.UTC()
	}
	return entry, nil
}

func (e *AuditEmitter) EmitTokenChecked(ctx context.Context, dealID, actorID, purpose string, allowed bool) error {
	_, err := e.Emit(ctx, domain.AuditEntry{
		DealID:    dealID,
		EventType: domain.AuditEventTokenChecked,
		ActorType: domain.AuditActorRecipient,
		ActorID:   actorID,
		Metadata:  domain.TokenCheckedMeta{Purpose: purpose, Allowed: allowed},
	})
	return err
}

func (e *AuditEmitter) EmitOTPSent(ctx context.Context, dealID string, channel domain.VerificationType, maskedTarget string) error {
	meta := domain.OTPSentMeta{Channel: channel, Target: maskedTarget}
	_, err := e.Emit(ctx, domain.AuditEntry{
		DealID:    dealID,
		EventType: meta.AuditEventType(),
		ActorType: domain.AuditActorRecipient,
		Metadata:  meta,
	})
	return err
}

func (e *AuditEmitter) EmitChannelVerified(ctx context.Context, dealID string, channel domain.VerificationType, method domain.VerificationMethod) error {
	meta := domain.ChannelVerifiedMeta{Channel: channel, Method: method}
	_, err := e.Emit(ctx, domain.AuditEntry{
		DealID:    dealID,
		EventType: meta.AuditEventType(),
		ActorType: domain.AuditActorRecipient,
		Metadata:  meta,
	})
	return err
}

func (e *AuditEmitter) EmitDealVerified(ctx context.Context, dealID string, match bool) error {
	_, err := e.Emit(ctx, domain.AuditEntry{
		DealID:    dealID,
		EventType: domain.AuditEventDealVerified,
		ActorType: domain.AuditActorSystem,
		Metadata:  domain.DealVerifiedMeta{Match: match},
	})
	return err
}

func (e *AuditEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

// MaskTarget hides the middle of an email or phone number for audit
// metadata, keeping just enough to recognize the channel.
func MaskTarget(target string) string {
	if len(target) <= 4 {
		return "****"
	}
	return target[:2] + "****" + target[len(target)-2:]
}
