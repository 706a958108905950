package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

// SealVersion prefixes every seal preimage so the canonicalization rules
// can evolve without old seals silently re-verifying under new rules.
const SealVersion = "proofo.seal.v1"

// ComputeSeal derives the deterministic fingerprint binding a deal's terms,
// signature, identity verifications and confirmation time. Identical inputs
// always yield the identical digest; any independent verifier with the same
// canonicalization rules can recompute it.
//
// Terms are serialized in insertion order, never resorted. Verifications
// are reduced to {type, verified_value} sorted by type name; timestamps and
// free-form metadata stay out of the hash so non-substantive metadata
// changes cannot disturb it. The timestamp enters at second precision.
func ComputeSeal(dealID string, terms []domain.Term, signatureRef string, confirmedAt time.Time, verifications []domain.VerificationRecord) (string, error) {
	if dealID == "" {
		return "", errors.New("deal id is required")
	}
	if signatureRef == "" {
		return "", errors.New("signature reference is required")
	}
	canonTerms, err := CanonicalTerms(terms)
	if err != nil {
		return "", err
	}
	canonVerifs, err := CanonicalVerifications(verifications)
	if err != nil {
		return "", err
	}

	preimage := strings.Join([]string{
		SealVersion,
		dealID,
		string(canonTerms),
		signatureRef,
		confirmedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		string(canonVerifs),
	}, "\n")

	sum := sha256.Sum256([]byte(preimage))
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalTerms renders the term list as a canonical JSON array, keeping
// the deal's insertion order.
func CanonicalTerms(terms []domain.Term) ([]byte, error) {
	arr := make([]any, 0, len(terms))
	for _, t := range terms {
		arr = append(arr, map[string]any{
			"label": t.Label,
			"type":  string(t.Type),
			"value": t.Value,
		})
	}
	return CanonicalizeAny(arr)
}

// CanonicalVerifications renders verification records as a fixed-shape
// canonical JSON array sorted by verification type name.
func CanonicalVerifications(records []domain.VerificationRecord) ([]byte, error) {
	sorted := make([]domain.VerificationRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Type < sorted[j].Type
	})
	arr := make([]any, 0, len(sorted))
	for _, r := range sorted {
		arr = append(arr, map[string]any{
			"type":           string(r.Type),
			"verified_value": r.VerifiedValue,
		})
	}
	return CanonicalizeAny(arr)
}
