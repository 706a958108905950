package domain

import (
	"errors"
	"time"
)

type DealStatus string

const (
	DealStatusPending   DealStatus = "pending"
	DealStatusSealing   DealStatus = "sealing"
	DealStatusConfirmed DealStatus = "confirmed"
	DealStatusVoided    DealStatus = "voided"
)

type TrustLevel string

const (
	TrustLevelBasic    TrustLevel = "basic"
	TrustLevelVerified TrustLevel = "verified"
	TrustLevelStrong   TrustLevel = "strong"
	TrustLevelMaximum  TrustLevel = "maximum"
)

func (l TrustLevel) Valid() bool {
	switch l {
	case TrustLevelBasic, TrustLevelVerified, TrustLevelStrong, TrustLevelMaximum:
		return true
	}
	return false
}

type TermType string

const (
	TermTypeText     TermType = "text"
	TermTypeCurrency TermType = "currency"
	TermTypeDate     TermType = "date"
	TermTypeNumber   TermType = "number"
)

func (t TermType) Valid() bool {
	switch t {
	case TermTypeText, TermTypeCurrency, TermTypeDate, TermTypeNumber:
		return true
	}
	return false
}

// Term is a single line of agreed content. Term order is fixed at creation
// and is significant: the seal hashes terms in insertion order.
type Term struct {
	Label string   `json:"label"`
	Value string   `json:"value"`
	Type  TermType `json:"type"`
}

// RecipientKind discriminates the recipient sum type: the recipient is
// either known only by name+email, or linked to a platform account.
type RecipientKind string

const (
	RecipientByEmail       RecipientKind = "by_email"
	RecipientLinkedAccount RecipientKind = "linked_account"
)

type Recipient struct {
	Kind   RecipientKind
	Name   string
	Email  string
	UserID string
}

func NewEmailRecipient(name, email string) Recipient {
	return Recipient{Kind: RecipientByEmail, Name: name, Email: email}
}

func NewLinkedRecipient(userID, name string) Recipient {
	return Recipient{Kind: RecipientLinkedAccount, Name: name, UserID: userID}
}

func (r Recipient) Validate() error {
	if r.Name == "" {
		return errors.New("recipient name is required")
	}
	switch r.Kind {
	case RecipientByEmail:
		if r.Email == "" {
			return errors.New("recipient email is required")
		}
		if r.UserID != "" {
			return errors.New("recipient user id not allowed for email recipient")
		}
	case RecipientLinkedAccount:
		if r.UserID == "" {
			return errors.New("recipient user id is required")
		}
	default:
		return errors.New("unknown recipient kind")
	}
	return nil
}

// Deal is the agreement being drafted, signed and sealed. DealSeal and
// SignatureURL are both nil until confirmation and both set afterwards.
type Deal struct {
	ID              string
	PublicID        string
	CreatorID       string
	RecipientName   string
	RecipientUserID string
	RecipientEmail  string
	Title           string
	Terms           []Term
	TrustLevel      TrustLevel
	Status          DealStatus

	CreatedAt    time.Time
	ViewedAt     *time.Time
	ConfirmedAt  *time.Time
	VoidedAt     *time.Time
	LastNudgedAt *time.Time

	SignatureURL string
	DealSeal     string
}

// Confirmed reports whether the deal has reached its sealed terminal state.
func (d Deal) Confirmed() bool {
	return d.Status == DealStatusConfirmed
}

func (d Deal) Terminal() bool {
	return d.Status == DealStatusConfirmed || d.Status == DealStatusVoided
}

// DealConfirmation carries everything the store must persist atomically
// when a pending deal transitions to confirmed.
type DealConfirmation struct {
	Seal         string
	SignatureURL string
	ConfirmedAt  time.Time
	TokenValue   string
	AuditEntries []AuditEntry
}
