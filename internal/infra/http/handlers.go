package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
	"github.com/CapTomas/Proofo-sub002/internal/usecase"
)

// Identity arrives from the fronting gateway as trusted headers; the
// service itself never handles credentials.
const (
	headerUserID    = "X-User-ID"
	headerUserEmail = "X-User-Email"
	headerDealToken = "X-Deal-Token"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type termInput struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

type recipientInput struct {
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

type createDealRequest struct {
	Title      string         `json:"title"`
	Terms      []termInput    `json:"terms"`
	Recipient  recipientInput `json:"recipient"`
	TrustLevel string         `json:"trust_level"`
}

type createDealResponse struct {
	Deal  dealResponse `json:"deal"`
	Token string       `json:"access_token"`
}

type dealResponse struct {
	ID            string      `json:"id"`
	PublicID      string      `json:"public_id"`
	CreatorID     string      `json:"creator_id"`
	RecipientName string      `json:"recipient_name"`
	Title         string      `json:"title"`
	Terms         []termInput `json:"terms"`
	TrustLevel    string      `json:"trust_level"`
	Status        string      `json:"status"`
	CreatedAt     string      `json:"created_at"`
	ViewedAt      *string     `json:"viewed_at,omitempty"`
	ConfirmedAt   *string     `json:"confirmed_at,omitempty"`
	VoidedAt      *string     `json:"voided_at,omitempty"`
	SignatureURL  string      `json:"signature_url,omitempty"`
	DealSeal      string      `json:"deal_seal,omitempty"`
}

type confirmDealRequest struct {
	Token           string `json:"token"`
	SignatureBase64 string `json:"signature_base64"`
}

type sendCodeRequest struct {
	Channel string `json:"channel"`
	Target  string `json:"target"`
}

type verifyCodeRequest struct {
	Channel string `json:"channel"`
	Target  string `json:"target"`
	Code    string `json:"code"`
}

type auditEntryResponse struct {
	ID        string               `json:"id"`
	EventType string               `json:"event_type"`
	ActorType string               `json:"actor_type"`
	ActorID   string               `json:"actor_id,omitempty"`
	Metadata  domain.AuditMetadata `json:"metadata"`
	CreatedAt string               `json:"created_at"`
}

func requestContext(c *gin.Context) domain.RequestContext {
	return domain.RequestContext{
		UserID:        c.GetHeader(headerUserID),
		VerifiedEmail: c.GetHeader(headerUserEmail),
		ClientIP:      c.ClientIP(),
		Origin:        c.GetHeader("Origin"),
	}
}

func dealToken(c *gin.Context) string {
	if t := c.Query("t"); t != "" {
		return t
	}
	return c.GetHeader(headerDealToken)
}

func (s *Server) handleCreateDeal(c *gin.Context) {
	var req createDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	terms := make([]domain.Term, 0, len(req.Terms))
	for _, t := range req.Terms {
		terms = append(terms, domain.Term{
			Label: t.Label,
			Value: t.Value,
			Type:  domain.TermType(t.Type),
		})
	}
	var recipient domain.Recipient
	if req.Recipient.UserID != "" {
		recipient = domain.NewLinkedRecipient(req.Recipient.UserID, req.Recipient.Name)
		recipient.Email = req.Recipient.Email
	} else {
		recipient = domain.NewEmailRecipient(req.Recipient.Name, req.Recipient.Email)
	}
	result, err := s.deals.CreateDeal(c.Request.Context(), requestContext(c), usecase.CreateDealRequest{
		Title:      req.Title,
		Terms:      terms,
		Recipient:  recipient,
		TrustLevel: domain.TrustLevel(req.TrustLevel),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createDealResponse{
		Deal:  dealToResponse(result.Deal),
		Token: result.Token.Token,
	})
}

func (s *Server) handleGetDeal(c *gin.Context) {
	deal, err := s.deals.GetDealByPublicID(c.Request.Context(), requestContext(c), c.Param("deal_id"), dealToken(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dealToResponse(*deal))
}

func (s *Server) handleVoidDeal(c *gin.Context) {
	deal, err := s.deals.VoidDeal(c.Request.Context(), requestContext(c), c.Param("deal_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dealToResponse(*deal))
}

func (s *Server) handleConfirmDeal(c *gin.Context) {
	var req confirmDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	token := req.Token
	if token == "" {
		token = dealToken(c)
	}
	signature, err := base64.StdEncoding.DecodeString(req.SignatureBase64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_SIGNATURE_ENCODING", "signature must be base64")
		return
	}
	deal, err := s.sealing.ConfirmDeal(c.Request.Context(), requestContext(c), c.Param("deal_id"), token, signature)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dealToResponse(*deal))
}

func (s *Server) handleNudgeDeal(c *gin.Context) {
	if err := s.deals.NudgeDeal(c.Request.Context(), requestContext(c), c.Param("deal_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (s *Server) handleSendCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	err := s.verifier.IssueCode(c.Request.Context(), requestContext(c), c.Param("deal_id"),
		domain.VerificationType(req.Channel), req.Target)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (s *Server) handleVerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	verified, err := s.verifier.VerifyCode(c.Request.Context(), requestContext(c), c.Param("deal_id"),
		domain.VerificationType(req.Channel), req.Target, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": verified})
}

func (s *Server) handleSignatureLink(c *gin.Context) {
	url, err := s.sealing.GetSignatureLink(c.Request.Context(), requestContext(c), c.Param("deal_id"), dealToken(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) handleVerifySeal(c *gin.Context) {
	match, err := s.sealing.VerifySeal(c.Request.Context(), c.Param("deal_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

func (s *Server) handleAuditTrail(c *gin.Context) {
	entries, err := s.deals.GetAuditTrail(c.Request.Context(), requestContext(c), c.Param("deal_id"), dealToken(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:        e.ID,
			EventType: string(e.EventType),
			ActorType: string(e.ActorType),
			ActorID:   e.ActorID,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

func dealToResponse(deal domain.Deal) dealResponse {
	terms := make([]termInput, 0, len(deal.Terms))
	for _, t := range deal.Terms {
		terms = append(terms, termInput{Label: t.Label, Value: t.Value, Type: string(t.Type)})
	}
	return dealResponse{
		ID:            deal.ID,
		PublicID:      deal.PublicID,
		CreatorID:     deal.CreatorID,
		RecipientName: deal.RecipientName,
		Title:         deal.Title,
		Terms:         terms,
		TrustLevel:    string(deal.TrustLevel),
		Status:        string(deal.Status),
		CreatedAt:     deal.CreatedAt.Format(time.RFC3339),
		ViewedAt:      formatTimePtr(deal.ViewedAt),
		ConfirmedAt:   formatTimePtr(deal.ConfirmedAt),
		VoidedAt:      formatTimePtr(deal.VoidedAt),
		SignatureURL:  deal.SignatureURL,
		DealSeal:      deal.DealSeal,
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, domain.ErrNotAuthorized):
		status, code = http.StatusForbidden, "NOT_AUTHORIZED"
	case errors.Is(err, domain.ErrDealNotAvailable):
		status, code = http.StatusConflict, "DEAL_NOT_AVAILABLE"
	case errors.Is(err, domain.ErrCannotSign):
		status, code = http.StatusForbidden, "CANNOT_SIGN"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrRateLimited):
		status, code = http.StatusTooManyRequests, "RATE_LIMITED"
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
