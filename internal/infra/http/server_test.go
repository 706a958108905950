package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/CapTomas/Proofo-sub002/internal/config"
	"github.com/CapTomas/Proofo-sub002/internal/domain"
	"github.com/CapTomas/Proofo-sub002/internal/infra/memstore"
	"github.com/CapTomas/Proofo-sub002/internal/infra/storage"
	"github.com/CapTomas/Proofo-sub002/internal/usecase"
)

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	emitter := usecase.NewAuditEmitter(store.Audit(), nil)
	tokens := usecase.NewTokenProtocol(store.Tokens(), emitter, nil)
	verifier := &usecase.VerificationService{
		Deals:         store.Deals(),
		Codes:         store.Codes(),
		Verifications: store.Verifications(),
		Trust:         usecase.StaticTrustPolicy{},
		Audit:         emitter,
	}
	deals := &usecase.DealService{
		Deals:   store.Deals(),
		Audit:   store.Audit(),
		Emitter: emitter,
		Tokens:  tokens,
	}
	sealing := &usecase.SealingEngine{
		Deals:         store.Deals(),
		Verifications: store.Verifications(),
		Tokens:        tokens,
		Verifier:      verifier,
		Audit:         emitter,
		Signatures:    storage.NewMemorySignatureStore(),
	}
	return NewServerWithDeps(cfg, ServerDeps{
		Deals:    deals,
		Sealing:  sealing,
		Verifier: verifier,
		Tokens:   tokens,
		Audit:    emitter,
	})
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func createDealViaAPI(t *testing.T, srv *Server) createDealResponse {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/v1/deals", gin.H{
		"title": "Consulting retainer",
		"terms": []gin.H{
			{"label": "Hours", "value": "40", "type": "number"},
			{"label": "Rate", "value": "120.00", "type": "currency"},
		},
		"recipient":   gin.H{"name": "Ana", "email": "ana@example.com"},
		"trust_level": "basic",
	}, map[string]string{headerUserID: "creator-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create deal: status %d body %s", rec.Code, rec.Body.String())
	}
	var out createDealResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
}

func TestCreateAndViewDeal(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	created := createDealViaAPI(t, srv)
	if created.Token == "" || created.Deal.PublicID == "" {
		t.Fatalf("expected token and public id, got %+v", created)
	}

	rec := doJSON(t, srv, http.MethodGet, "/v1/deals/"+created.Deal.PublicID+"?t="+created.Token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("view with token: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/deals/"+created.Deal.PublicID, nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("view without token: status %d, want 403", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != "NOT_AUTHORIZED" {
		t.Fatalf("error code %s, want NOT_AUTHORIZED", body.Code)
	}
}

func TestConfirmDealOverHTTP(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	created := createDealViaAPI(t, srv)

	signature := base64.StdEncoding.EncodeToString([]byte("signature-png"))
	rec := doJSON(t, srv, http.MethodPost, "/v1/deals/"+created.Deal.ID+"/confirm", gin.H{
		"token":            created.Token,
		"signature_base64": signature,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: status %d body %s", rec.Code, rec.Body.String())
	}
	var deal dealResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &deal); err != nil {
		t.Fatalf("decode deal: %v", err)
	}
	if deal.Status != string(domain.DealStatusConfirmed) || deal.DealSeal == "" {
		t.Fatalf("expected a sealed confirmed deal, got %+v", deal)
	}

	// Replay of the consumed token conflicts.
	rec = doJSON(t, srv, http.MethodPost, "/v1/deals/"+created.Deal.ID+"/confirm", gin.H{
		"token":            created.Token,
		"signature_base64": signature,
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second confirm: status %d, want 409", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/deals/"+created.Deal.ID+"/seal/verify", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("seal verify: status %d body %s", rec.Code, rec.Body.String())
	}
	var verify struct {
		Match bool `json:"match"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &verify); err != nil {
		t.Fatalf("decode verify: %v", err)
	}
	if !verify.Match {
		t.Fatal("freshly sealed deal must verify")
	}
}

func TestSignatureLinkOverHTTP(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	created := createDealViaAPI(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/v1/deals/"+created.Deal.ID+"/signature", nil,
		map[string]string{headerUserID: "creator-1"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("pending deal signature: status %d, want 409", rec.Code)
	}

	signature := base64.StdEncoding.EncodeToString([]byte("signature-png"))
	rec = doJSON(t, srv, http.MethodPost, "/v1/deals/"+created.Deal.ID+"/confirm", gin.H{
		"token":            created.Token,
		"signature_base64": signature,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/deals/"+created.Deal.ID+"/signature?t="+created.Token, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signature link: status %d body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode link: %v", err)
	}
	if out.URL == "" {
		t.Fatal("expected a presigned url")
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/deals/"+created.Deal.ID+"/signature", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous signature link: status %d, want 403", rec.Code)
	}
}

func TestConfirmRejectsBadBase64(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	created := createDealViaAPI(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/v1/deals/"+created.Deal.ID+"/confirm", gin.H{
		"token":            created.Token,
		"signature_base64": "%%% not base64 %%%",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad base64: status %d, want 400", rec.Code)
	}
}

func TestVerificationGateOverHTTP(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	rec := doJSON(t, srv, http.MethodPost, "/v1/deals", gin.H{
		"title":       "Verified deal",
		"terms":       []gin.H{{"label": "Scope", "value": "x", "type": "text"}},
		"recipient":   gin.H{"name": "Ana", "email": "ana@example.com"},
		"trust_level": "verified",
	}, map[string]string{headerUserID: "creator-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created createDealResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	signature := base64.StdEncoding.EncodeToString([]byte("signature-png"))
	rec = doJSON(t, srv, http.MethodPost, "/v1/deals/"+created.Deal.ID+"/confirm", gin.H{
		"token":            created.Token,
		"signature_base64": signature,
	}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unverified confirm: status %d, want 403", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "CANNOT_SIGN" {
		t.Fatalf("error code %s, want CANNOT_SIGN", body.Code)
	}
}

func TestVoidAndAuditTrailOverHTTP(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	created := createDealViaAPI(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/v1/deals/"+created.Deal.ID+"/void", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous void: status %d, want 403", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodPost, "/v1/deals/"+created.Deal.ID+"/void", nil,
		map[string]string{headerUserID: "creator-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("creator void: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/deals/"+created.Deal.ID+"/audit", nil,
		map[string]string{headerUserID: "creator-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("audit trail: status %d body %s", rec.Code, rec.Body.String())
	}
	var trail struct {
		Entries []struct {
			EventType string `json:"event_type"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &trail); err != nil {
		t.Fatalf("decode trail: %v", err)
	}
	if len(trail.Entries) != 2 {
		t.Fatalf("expected deal_created + deal_voided, got %d entries", len(trail.Entries))
	}
	if trail.Entries[0].EventType != "deal_created" || trail.Entries[1].EventType != "deal_voided" {
		t.Fatalf("unexpected trail order: %+v", trail.Entries)
	}
}

func TestOriginCheckOnMutatingRoutes(t *testing.T) {
	srv := newTestServer(t, config.Config{AllowedOrigins: []string{"https://proofo.app"}})

	rec := doJSON(t, srv, http.MethodPost, "/v1/deals", gin.H{}, map[string]string{
		headerUserID: "creator-1",
		"Origin":     "https://evil.example.com",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-origin create: status %d, want 403", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Code != "ORIGIN_FORBIDDEN" {
		t.Fatalf("error code %s, want ORIGIN_FORBIDDEN", body.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/v1/deals", gin.H{
		"title":       "Allowed origin",
		"terms":       []gin.H{{"label": "Scope", "value": "x", "type": "text"}},
		"recipient":   gin.H{"name": "Ana", "email": "ana@example.com"},
		"trust_level": "basic",
	}, map[string]string{
		headerUserID: "creator-1",
		"Origin":     "https://proofo.app",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("same-origin create: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	rec := doJSON(t, srv, http.MethodGet, "/v1/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: status %d", rec.Code)
	}
}
