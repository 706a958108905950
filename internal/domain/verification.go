package domain

import "time"

type VerificationType string

const (
	VerificationEmail VerificationType = "email"
	VerificationPhone VerificationType = "phone"
)

func (v VerificationType) Valid() bool {
	return v == VerificationEmail || v == VerificationPhone
}

type VerificationMethod string

const (
	// VerificationMethodOTP means the target proved control by redeeming a
	// one-time code.
	VerificationMethodOTP VerificationMethod = "otp"
	// VerificationMethodAccount means the platform's own authentication
	// already proved the channel (trusted-identity shortcut).
	VerificationMethodAccount VerificationMethod = "account"
)

// VerificationRecord is durable proof that the recipient controls a claimed
// channel. At most one record exists per (deal, type); re-verification
// upserts rather than appends.
type VerificationRecord struct {
	DealID        string
	Type          VerificationType
	VerifiedValue string
	Method        VerificationMethod
	VerifiedAt    time.Time
}

// OneTimeCodeLifetime bounds how long an issued code can be redeemed.
const OneTimeCodeLifetime = 10 * time.Minute

// OneTimeCode is the ephemeral proof artifact behind a VerificationRecord.
// Only the hash of the code is ever stored.
type OneTimeCode struct {
	ID        string
	DealID    string
	Type      VerificationType
	Target    string
	CodeHash  string
	Consumed  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (c OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// TrustRequirements is the set of proofs a trust level demands before the
// recipient may sign.
type TrustRequirements struct {
	EmailRequired bool
	PhoneRequired bool
}

// Satisfied reports whether the given records cover every required proof.
func (r TrustRequirements) Satisfied(records []VerificationRecord) bool {
	have := map[VerificationType]bool{}
	for _, rec := range records {
		have[rec.Type] = true
	}
	if r.EmailRequired && !have[VerificationEmail] {
		return false
	}
	if r.PhoneRequired && !have[VerificationPhone] {
		return false
	}
	return true
}

// Missing lists the verification types still lacking a record, sorted
// email before phone for stable output.
func (r TrustRequirements) Missing(records []VerificationRecord) []VerificationType {
	have := map[VerificationType]bool{}
	for _, rec := range records {
		have[rec.Type] = true
	}
	var missing []VerificationType
	if r.EmailRequired && !have[VerificationEmail] {
		missing = append(missing, VerificationEmail)
	}
	if r.PhoneRequired && !have[VerificationPhone] {
		missing = append(missing, VerificationPhone)
	}
	return missing
}
