package domain

import "time"

type AuditActorType string

const (
	AuditActorCreator   AuditActorType = "creator"
	AuditActorRecipient AuditActorType = "recipient"
	AuditActorSystem    AuditActorType = "system"
)

type AuditEventType string

const (
	AuditEventDealCreated   AuditEventType = "deal_created"
	AuditEventDealViewed    AuditEventType = "deal_viewed"
	AuditEventDealSigned    AuditEventType = "deal_signed"
	AuditEventDealConfirmed AuditEventType = "deal_confirmed"
	AuditEventDealVoided    AuditEventType = "deal_voided"
	AuditEventEmailOTPSent  AuditEventType = "email_otp_sent"
	AuditEventEmailVerified AuditEventType = "email_verified"
	AuditEventPhoneOTPSent  AuditEventType = "phone_otp_sent"
	AuditEventPhoneVerified AuditEventType = "phone_verified"
	AuditEventTokenChecked  AuditEventType = "token_validated"
	AuditEventDealVerified  AuditEventType = "deal_verified"
)

// AuditMetadata is the tagged union of per-event payloads. The tag must
// match the entry's event type; the emitter rejects mismatches so the
// closed event enumeration stays meaningful.
type AuditMetadata interface {
	AuditEventType() AuditEventType
}

type DealCreatedMeta struct {
	PublicID   string     `json:"public_id"`
	TrustLevel TrustLevel `json:"trust_level"`
	TermCount  int        `json:"term_count"`
}

func (DealCreatedMeta) AuditEventType() AuditEventType { return AuditEventDealCreated }

type DealViewedMeta struct {
	ViewCount int `json:"view_count"`
}

func (DealViewedMeta) AuditEventType() AuditEventType { return AuditEventDealViewed }

type DealSignedMeta struct {
	SignatureURL string `json:"signature_url"`
}

func (DealSignedMeta) AuditEventType() AuditEventType { return AuditEventDealSigned }

type DealConfirmedMeta struct {
	Seal              string `json:"seal"`
	VerificationCount int    `json:"verification_count"`
}

func (DealConfirmedMeta) AuditEventType() AuditEventType { return AuditEventDealConfirmed }

type DealVoidedMeta struct{}

func (DealVoidedMeta) AuditEventType() AuditEventType { return AuditEventDealVoided }

type OTPSentMeta struct {
	Channel VerificationType `json:"channel"`
	// Target is stored masked, never verbatim.
	Target string `json:"target"`
}

func (m OTPSentMeta) AuditEventType() AuditEventType {
	if m.Channel == VerificationPhone {
		return AuditEventPhoneOTPSent
	}
	return AuditEventEmailOTPSent
}

type ChannelVerifiedMeta struct {
	Channel VerificationType   `json:"channel"`
	Method  VerificationMethod `json:"method"`
}

func (m ChannelVerifiedMeta) AuditEventType() AuditEventType {
	if m.Channel == VerificationPhone {
		return AuditEventPhoneVerified
	}
	return AuditEventEmailVerified
}

type TokenCheckedMeta struct {
	Purpose string `json:"purpose"`
	Allowed bool   `json:"allowed"`
}

func (TokenCheckedMeta) AuditEventType() AuditEventType { return AuditEventTokenChecked }

type DealVerifiedMeta struct {
	Match bool `json:"match"`
}

func (DealVerifiedMeta) AuditEventType() AuditEventType { return AuditEventDealVerified }

// AuditEntry is one immutable row of the append-only per-deal event log.
// Entries are never updated, deleted or reordered; display order is by
// creation time.
type AuditEntry struct {
	ID        string
	DealID    string
	EventType AuditEventType
	ActorType AuditActorType
	ActorID   string
	Metadata  AuditMetadata
	CreatedAt time.Time
}
