package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/domain"
	"github.com/raimp001/autocase-ai/internal/service"
)

// ConsentHandler 患者同意账本 Handler
type ConsentHandler struct {
	consentService *service.ConsentService
	logger         *zap.Logger
}

// NewConsentHandler 创建同意 Handler
func NewConsentHandler(consentService *service.ConsentService, logger *zap.Logger) *ConsentHandler {
	return &ConsentHandler{
		consentService: consentService,
		logger:         logger,
	}
}

// consentResponse 对外响应投影。钱包地址是支付路由元数据，不回显。
type consentResponse struct {
	PersonKey         string  `json:"personKey"`
	Status            string  `json:"status"`
	OptInRwe          bool    `json:"optInRwe"`
	Tier              int     `json:"tier"`
	PolicyVersion     string  `json:"policyVersion"`
	ContentHash       string  `json:"contentHash"`
	AttestationRef    *string `json:"attestationRef,omitempty"`
	AttestationStatus string  `json:"attestationStatus"`
	SignedAt          string  `json:"signedAt,omitempty"`
	RevokedAt         *string `json:"revokedAt,omitempty"`
}

func toConsentResponse(rec *domain.ConsentRecord) consentResponse {
	resp := consentResponse{
		PersonKey:         rec.PersonKey,
		Status:            rec.Status,
		OptInRwe:          rec.OptInRwe,
		Tier:              rec.Tier,
		PolicyVersion:     rec.PolicyVersion,
		ContentHash:       rec.ContentHash,
		AttestationRef:    rec.AttestationRef,
		AttestationStatus: rec.AttestationStatus,
	}
	if !rec.SignedAt.IsZero() {
		resp.SignedAt = rec.SignedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if rec.RevokedAt != nil {
		s := rec.RevokedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.RevokedAt = &s
	}
	return resp
}

// RecordConsent POST /core/api/v1/consent
func (h *ConsentHandler) RecordConsent(w http.ResponseWriter, r *http.Request) {
	var req service.ConsentRequest
	if err := readBodyJSON(r, 64*1024, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON payload"))
		return
	}

	rec, err := h.consentService.RecordConsent(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"consent": toConsentResponse(rec),
	})
}

// GetConsent GET /core/api/v1/consent?personKey=...
// 未找到记录返回 200 + PENDING：对调用方来说"从未表态"和"尚未同意"等价。
func (h *ConsentHandler) GetConsent(w http.ResponseWriter, r *http.Request) {
	personKey := r.URL.Query().Get("personKey")
	if personKey == "" {
		writeJSON(w, http.StatusBadRequest, Fail("personKey is required"))
		return
	}

	rec, err := h.consentService.GetConsent(r.Context(), personKey)
	if err != nil {
		if domain.IsNotFound(err) {
			writeJSON(w, http.StatusOK, map[string]any{
				"personKey": personKey,
				"status":    domain.ConsentStatusPending,
				"message":   "No consent record found",
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toConsentResponse(rec))
}

// RevokeConsent DELETE /core/api/v1/consent?personKey=...
func (h *ConsentHandler) RevokeConsent(w http.ResponseWriter, r *http.Request) {
	personKey := r.URL.Query().Get("personKey")
	if personKey == "" {
		writeJSON(w, http.StatusBadRequest, Fail("personKey is required"))
		return
	}

	rec, err := h.consentService.RevokeConsent(r.Context(), personKey)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"consent": toConsentResponse(rec),
	})
}
