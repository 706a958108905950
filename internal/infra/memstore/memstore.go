// Package memstore provides in-memory repository implementations used when
// no Postgres DSN is configured, and by the protocol's unit tests. The
// conditional-write semantics mirror the db package: claims, token
// consumption and code consumption all happen under one lock so the
// atomicity guarantees of confirm hold here too.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

type Store struct {
	mu      sync.Mutex
	deals   map[string]*domain.Deal
	byPub   map[string]string
	tokens  map[string]*domain.AccessToken
	verifs  map[string]map[domain.VerificationType]domain.VerificationRecord
	codes   map[string]*domain.OneTimeCode
	entries []domain.AuditEntry
}

func New() *Store {
	return &Store{
		deals:  make(map[string]*domain.Deal),
		byPub:  make(map[string]string),
		tokens: make(map[string]*domain.AccessToken),
		verifs: make(map[string]map[domain.VerificationType]domain.VerificationRecord),
		codes:  make(map[string]*domain.OneTimeCode),
	}
}

func (s *Store) Deals() *DealRepo                 { return &DealRepo{s: s} }
func (s *Store) Tokens() *TokenRepo               { return &TokenRepo{s: s} }
func (s *Store) Verifications() *VerificationRepo { return &VerificationRepo{s: s} }
func (s *Store) Codes() *CodeRepo                 { return &CodeRepo{s: s} }
func (s *Store) Audit() *AuditRepo                { return &AuditRepo{s: s} }

type DealRepo struct{ s *Store }

func (r *DealRepo) CreateWithToken(_ context.Context, deal domain.Deal, token domain.AccessToken, created domain.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := deal
	r.s.deals[deal.ID] = &d
	r.s.byPub[deal.PublicID] = deal.ID
	t := token
	r.s.tokens[deal.ID] = &t
	r.s.appendLocked(created)
	return nil
}

func (r *DealRepo) GetByID(_ context.Context, id string) (*domain.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyDeal(r.s.deals[id]), nil
}

func (r *DealRepo) GetByPublicID(_ context.Context, publicID string) (*domain.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.byPub[publicID]
	if !ok {
		return nil, nil
	}
	return copyDeal(r.s.deals[id]), nil
}

func (r *DealRepo) MarkViewed(_ context.Context, dealID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	deal, ok := r.s.deals[dealID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if deal.ViewedAt != nil {
		return false, nil
	}
	t := at.UTC()
	deal.ViewedAt = &t
	return true, nil
}

func (r *DealRepo) SetLastNudged(_ context.Context, dealID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	deal, ok := r.s.deals[dealID]
	if !ok {
		return domain.ErrNotFound
	}
	t := at.UTC()
	deal.LastNudgedAt = &t
	return nil
}

func (r *DealRepo) Void(_ context.Context, dealID string, at time.Time, entry domain.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	deal, ok := r.s.deals[dealID]
	if !ok {
		return domain.ErrNotFound
	}
	if deal.Status != domain.DealStatusPending {
		return domain.ErrDealNotAvailable
	}
	t := at.UTC()
	deal.Status = domain.DealStatusVoided
	deal.VoidedAt = &t
	r.s.appendLocked(entry)
	return nil
}

func (r *DealRepo) Confirm(_ context.Context, dealID string, c domain.DealConfirmation) (*domain.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	deal, ok := r.s.deals[dealID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if deal.Status != domain.DealStatusPending {
		return nil, domain.ErrDealNotAvailable
	}
	token := r.s.tokens[dealID]
	if token == nil || token.Token != c.TokenValue || token.State != domain.TokenStateUnused {
		return nil, domain.ErrNotAuthorized
	}
	usedAt := c.ConfirmedAt.UTC()
	token.State = domain.TokenStateUsed
	token.UsedAt = &usedAt

	confirmedAt := c.ConfirmedAt.UTC()
	deal.Status = domain.DealStatusConfirmed
	deal.ConfirmedAt = &confirmedAt
	deal.DealSeal = c.Seal
	deal.SignatureURL = c.SignatureURL
	for _, entry := range c.AuditEntries {
		r.s.appendLocked(entry)
	}
	return copyDeal(deal), nil
}

type TokenRepo struct{ s *Store }

func (r *TokenRepo) GetByDeal(_ context.Context, dealID string) (*domain.AccessToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token, ok := r.s.tokens[dealID]
	if !ok {
		return nil, nil
	}
	t := *token
	return &t, nil
}

type VerificationRepo struct{ s *Store }

func (r *VerificationRepo) Upsert(_ context.Context, record domain.VerificationRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byType, ok := r.s.verifs[record.DealID]
	if !ok {
		byType = make(map[domain.VerificationType]domain.VerificationRecord)
		r.s.verifs[record.DealID] = byType
	}
	byType[record.Type] = record
	return nil
}

func (r *VerificationRepo) ListByDeal(_ context.Context, dealID string) ([]domain.VerificationRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byType := r.s.verifs[dealID]
	out := make([]domain.VerificationRecord, 0, len(byType))
	for _, record := range byType {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

type CodeRepo struct{ s *Store }

func (r *CodeRepo) Create(_ context.Context, code domain.OneTimeCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := code
	r.s.codes[code.ID] = &c
	return nil
}

func (r *CodeRepo) GetActive(_ context.Context, dealID string, codeType domain.VerificationType, target string, now time.Time) (*domain.OneTimeCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var newest *domain.OneTimeCode
	for _, code := range r.s.codes {
		if code.DealID != dealID || code.Type != codeType || code.Target != target {
			continue
		}
		if code.Consumed || code.Expired(now) {
			continue
		}
		if newest == nil || code.CreatedAt.After(newest.CreatedAt) {
			newest = code
		}
	}
	if newest == nil {
		return nil, nil
	}
	c := *newest
	return &c, nil
}

func (r *CodeRepo) Consume(_ context.Context, codeID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	code, ok := r.s.codes[codeID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if code.Consumed {
		return false, nil
	}
	code.Consumed = true
	return true, nil
}

type AuditRepo struct{ s *Store }

func (r *AuditRepo) Append(_ context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.appendLocked(entry), nil
}

func (r *AuditRepo) ListByDeal(_ context.Context, dealID string) ([]domain.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.AuditEntry, 0)
	for _, entry := range r.s.entries {
		if entry.DealID == dealID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *AuditRepo) CountByDealAndType(_ context.Context, dealID string, eventType domain.AuditEventType) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, entry := range r.s.entries {
		if entry.DealID == dealID && entry.EventType == eventType {
			n++
		}
	}
	return n, nil
}

func (s *Store) appendLocked(entry domain.AuditEntry) domain.AuditEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	return entry
}

func copyDeal(deal *domain.Deal) *domain.Deal {
	if deal == nil {
		return nil
	}
	out := *deal
	out.Terms = append([]domain.Term(nil), deal.Terms...)
	return &out
}
