package crypto

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

func sampleTerms() []domain.Term {
	return []domain.Term{
		{Label: "Price", Value: "1200.00", Type: domain.TermTypeCurrency},
		{Label: "Delivery", Value: "2026-09-15", Type: domain.TermTypeDate},
		{Label: "Notes", Value: "includes setup", Type: domain.TermTypeText},
	}
}

func sampleVerifications() []domain.VerificationRecord {
	return []domain.VerificationRecord{
		{DealID: "deal-1", Type: domain.VerificationPhone, VerifiedValue: "+15550001111", Method: domain.VerificationMethodOTP, VerifiedAt: time.Now()},
		{DealID: "deal-1", Type: domain.VerificationEmail, VerifiedValue: "ana@example.com", Method: domain.VerificationMethodOTP, VerifiedAt: time.Now()},
	}
}

func TestComputeSealDeterministic(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 30, 45, 0, time.UTC)
	first, err := ComputeSeal("deal-1", sampleTerms(), "signatures/deal-1/a.png", at, sampleVerifications())
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	second, err := ComputeSeal("deal-1", sampleTerms(), "signatures/deal-1/a.png", at, sampleVerifications())
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	if first != second {
		t.Fatalf("identical inputs produced different seals: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	if _, err := hex.DecodeString(first); err != nil {
		t.Fatalf("seal is not lowercase hex: %v", err)
	}
}

func TestComputeSealSingleBitAvalanche(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 30, 45, 0, time.UTC)
	base, err := ComputeSeal("deal-1", sampleTerms(), "sig-ref", at, nil)
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	tampered := sampleTerms()
	tampered[0].Value = "1200.01"
	changed, err := ComputeSeal("deal-1", tampered, "sig-ref", at, nil)
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	if base == changed {
		t.Fatal("changing one term value must change the seal")
	}
}

func TestComputeSealTermOrderSignificant(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 30, 45, 0, time.UTC)
	terms := sampleTerms()
	original, err := ComputeSeal("deal-1", terms, "sig-ref", at, nil)
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	swapped := []domain.Term{terms[1], terms[0], terms[2]}
	reordered, err := ComputeSeal("deal-1", swapped, "sig-ref", at, nil)
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	if original == reordered {
		t.Fatal("term order is part of the sealed content and must affect the seal")
	}
}

func TestComputeSealVerificationOrderIrrelevant(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 30, 45, 0, time.UTC)
	verifs := sampleVerifications()
	first, err := ComputeSeal("deal-1", sampleTerms(), "sig-ref", at, verifs)
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	reversed := []domain.VerificationRecord{verifs[1], verifs[0]}
	second, err := ComputeSeal("deal-1", sampleTerms(), "sig-ref", at, reversed)
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	if first != second {
		t.Fatal("verification records are canonicalized sorted by type; storage order must not matter")
	}
}

func TestComputeSealIgnoresVerificationTimestamps(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 30, 45, 0, time.UTC)
	verifs := sampleVerifications()
	first, err := ComputeSeal("deal-1", sampleTerms(), "sig-ref", at, verifs)
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	later := make([]domain.VerificationRecord, len(verifs))
	copy(later, verifs)
	for i := range later {
		later[i].VerifiedAt = later[i].VerifiedAt.Add(48 * time.Hour)
		later[i].Method = domain.VerificationMethodAccount
	}
	second, err := ComputeSeal("deal-1", sampleTerms(), "sig-ref", at, later)
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	if first != second {
		t.Fatal("verification timestamps and method must stay out of the seal")
	}
}

func TestComputeSealSecondPrecision(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 30, 45, 0, time.UTC)
	withNanos := base.Add(731 * time.Millisecond)
	first, err := ComputeSeal("deal-1", sampleTerms(), "sig-ref", base, nil)
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	second, err := ComputeSeal("deal-1", sampleTerms(), "sig-ref", withNanos, nil)
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	if first != second {
		t.Fatal("sub-second timestamp precision must not affect the seal")
	}
	nextSecond, err := ComputeSeal("deal-1", sampleTerms(), "sig-ref", base.Add(time.Second), nil)
	if err != nil {
		t.Fatalf("compute seal: %v", err)
	}
	if first == nextSecond {
		t.Fatal("a different second must produce a different seal")
	}
}

func TestComputeSealRequiredInputs(t *testing.T) {
	at := time.Now()
	if _, err := ComputeSeal("", sampleTerms(), "sig-ref", at, nil); err == nil {
		t.Fatal("expected error for missing deal id")
	}
	if _, err := ComputeSeal("deal-1", sampleTerms(), "", at, nil); err == nil {
		t.Fatal("expected error for missing signature reference")
	}
}
