package usecase

import (
	"context"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

// RequirementsFor maps a trust level to the proofs that gate signing:
//
//	basic     none
//	verified  email
//	strong    email + phone
//	maximum   email + phone
func RequirementsFor(level domain.TrustLevel) domain.TrustRequirements {
	switch level {
	case domain.TrustLevelVerified:
		return domain.TrustRequirements{EmailRequired: true}
	case domain.TrustLevelStrong, domain.TrustLevelMaximum:
		return domain.TrustRequirements{EmailRequired: true, PhoneRequired: true}
	default:
		return domain.TrustRequirements{}
	}
}

// StaticTrustPolicy is the builtin TrustEvaluator backed by the fixed table.
type StaticTrustPolicy struct{}

func (StaticTrustPolicy) Requirements(_ context.Context, level domain.TrustLevel) (domain.TrustRequirements, error) {
	return RequirementsFor(level), nil
}
