package db

import "time"

type DealModel struct {
	ID              string  `gorm:"type:uuid;primaryKey"`
	PublicID        string  `gorm:"uniqueIndex;not null"`
	CreatorID       string  `gorm:"index;not null"`
	RecipientName   string  `gorm:"not null"`
	RecipientUserID *string `gorm:"index"`
	RecipientEmail  *string
	Title           string    `gorm:"not null"`
	TermsJSON       []byte    `gorm:"column:terms;type:jsonb;not null"`
	TrustLevel      string    `gorm:"not null"`
	Status          string    `gorm:"index;not null"`
	CreatedAt       time.Time `gorm:"not null"`
	ViewedAt        *time.Time
	ConfirmedAt     *time.Time
	VoidedAt        *time.Time
	LastNudgedAt    *time.Time
	SignatureURL    *string
	DealSeal        *string
}

func (DealModel) TableName() string { return "deals" }

type AccessTokenModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	DealID    string    `gorm:"type:uuid;uniqueIndex;not null"`
	Token     string    `gorm:"uniqueIndex;not null"`
	State     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UsedAt    *time.Time
}

func (AccessTokenModel) TableName() string { return "access_tokens" }

type VerificationRecordModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	DealID        string    `gorm:"type:uuid;uniqueIndex:idx_verification_deal_type;not null"`
	Type          string    `gorm:"uniqueIndex:idx_verification_deal_type;not null"`
	VerifiedValue string    `gorm:"not null"`
	Method        string    `gorm:"not null"`
	VerifiedAt    time.Time `gorm:"not null"`
}

func (VerificationRecordModel) TableName() string { return "verification_records" }

type OneTimeCodeModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	DealID    string    `gorm:"type:uuid;index;not null"`
	Type      string    `gorm:"index;not null"`
	Target    string    `gorm:"index;not null"`
	CodeHash  string    `gorm:"not null"`
	Consumed  bool      `gorm:"not null;default:false"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (OneTimeCodeModel) TableName() string { return "one_time_codes" }

type AuditLogEntryModel struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	DealID       string    `gorm:"type:uuid;index;not null"`
	EventType    string    `gorm:"index;not null"`
	ActorType    string    `gorm:"not null"`
	ActorID      *string
	MetadataJSON []byte    `gorm:"column:metadata;type:jsonb;not null"`
	CreatedAt    time.Time `gorm:"index;not null"`
}

func (AuditLogEntryModel) TableName() string { return "audit_log_entries" }
