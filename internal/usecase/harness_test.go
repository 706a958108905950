package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
	"github.com/CapTomas/Proofo-sub002/internal/infra/memstore"
	"github.com/CapTomas/Proofo-sub002/internal/infra/storage"
)

var testEpoch = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// notifierStub records every outbound message so tests can read back the
// raw one-time codes and invite tokens.
type notifierStub struct {
	mu      sync.Mutex
	codes   map[string]string // key: channel+target
	invites []string
	fail    bool
}

func newNotifierStub() *notifierStub {
	return &notifierStub{codes: make(map[string]string)}
}

func (n *notifierStub) SendCode(_ context.Context, channel domain.VerificationType, target, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return context.DeadlineExceeded
	}
	n.codes[string(channel)+":"+target] = code
	return nil
}

func (n *notifierStub) SendDealInvite(_ context.Context, email, publicID, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return context.DeadlineExceeded
	}
	n.invites = append(n.invites, email+":"+publicID+":"+token)
	return nil
}

func (n *notifierStub) lastCode(channel domain.VerificationType, target string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[string(channel)+":"+target]
}

// harness assembles the full protocol against the in-memory store with a
// controllable clock.
type harness struct {
	store    *memstore.Store
	notifier *notifierStub
	now      time.Time
	mu       sync.Mutex

	deals    *DealService
	sealing  *SealingEngine
	verifier *VerificationService
	tokens   *TokenProtocol
	emitter  *AuditEmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    memstore.New(),
		notifier: newNotifierStub(),
		now:      testEpoch,
	}
	clock := func() time.Time {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.now
	}
	h.emitter = NewAuditEmitter(h.store.Audit(), clock)
	h.tokens = NewTokenProtocol(h.store.Tokens(), h.emitter, clock)
	h.verifier = &VerificationService{
		Deals:         h.store.Deals(),
		Codes:         h.store.Codes(),
		Verifications: h.store.Verifications(),
		Trust:         StaticTrustPolicy{},
		Audit:         h.emitter,
		Notifier:      h.notifier,
		Clock:         clock,
	}
	h.deals = &DealService{
		Deals:    h.store.Deals(),
		Audit:    h.store.Audit(),
		Emitter:  h.emitter,
		Tokens:   h.tokens,
		Notifier: h.notifier,
		Clock:    clock,
	}
	h.sealing = &SealingEngine{
		Deals:         h.store.Deals(),
		Verifications: h.store.Verifications(),
		Tokens:        h.tokens,
		Verifier:      h.verifier,
		Audit:         h.emitter,
		Signatures:    storage.NewMemorySignatureStore(),
		Clock:         clock,
	}
	return h
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	h.now = h.now.Add(d)
	h.mu.Unlock()
}

func creatorCtx() domain.RequestContext {
	return domain.RequestContext{UserID: "user-creator"}
}

func recipientCtx() domain.RequestContext {
	return domain.RequestContext{}
}

func (h *harness) createDeal(t *testing.T, level domain.TrustLevel) *CreateDealResult {
	t.Helper()
	result, err := h.deals.CreateDeal(context.Background(), creatorCtx(), CreateDealRequest{
		Title: "Freelance design engagement",
		Terms: []domain.Term{
			{Label: "Scope", Value: "logo + brand sheet", Type: domain.TermTypeText},
			{Label: "Fee", Value: "750.00", Type: domain.TermTypeCurrency},
		},
		Recipient:  domain.NewEmailRecipient("Ana", "ana@example.com"),
		TrustLevel: level,
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}
	return result
}

func (h *harness) verifyChannel(t *testing.T, dealID string, channel domain.VerificationType, target string) {
	t.Helper()
	ctx := context.Background()
	if err := h.verifier.IssueCode(ctx, recipientCtx(), dealID, channel, target); err != nil {
		t.Fatalf("issue %s code: %v", channel, err)
	}
	code := h.notifier.lastCode(channel, target)
	if code == "" {
		t.Fatalf("no %s code delivered", channel)
	}
	ok, err := h.verifier.VerifyCode(ctx, recipientCtx(), dealID, channel, target, code)
	if err != nil {
		t.Fatalf("verify %s code: %v", channel, err)
	}
	if !ok {
		t.Fatalf("%s code should verify", channel)
	}
}

func countEvents(t *testing.T, h *harness, dealID string, eventType domain.AuditEventType) int {
	t.Helper()
	n, err := h.store.Audit().CountByDealAndType(context.Background(), dealID, eventType)
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	return int(n)
}
