package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/domain"
	"github.com/raimp001/autocase-ai/internal/service"
)

// FHIR bundle 最大字节数
const maxWebhookBodyBytes = 1 << 20 // 1 MB

// WebhookHandler EMR FHIR webhook 入口
type WebhookHandler struct {
	caseService   *service.CaseService
	webhookSecret string
	logger        *zap.Logger
}

// NewWebhookHandler 创建 webhook Handler
func NewWebhookHandler(caseService *service.CaseService, webhookSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		caseService:   caseService,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// HandleFhirWebhook POST /core/api/v1/fhir/webhook
// 签名校验在解析负载之前；原始字节的 SHA-256 作为幂等键贯穿整条摄入链路。
func (h *WebhookHandler) HandleFhirWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("failed to read request body"))
		return
	}

	if h.webhookSecret != "" {
		if err := verifySignature(body, r.Header.Get("X-Hub-Signature-256"), h.webhookSecret); err != nil {
			h.logger.Warn("Webhook signature verification failed", zap.Error(err))
			writeError(w, err)
			return
		}
	}

	eventHash := sha256Hex(body)

	var bundle service.FhirBundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON payload"))
		return
	}

	result, err := h.caseService.IngestBundle(r.Context(), &bundle, eventHash)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"caseId":     result.CaseID,
		"personKey":  result.PersonKey,
		"isRare":     result.IsRare,
		"flagReason": result.FlagReason,
		"status":     result.Status,
		"duplicate":  result.Duplicate,
	})
}

// verifySignature 校验 HMAC-SHA256 签名（格式 "sha256=<hex>"）
func verifySignature(body []byte, header, secret string) error {
	if header == "" {
		return domain.NewAuthenticationError("missing webhook signature")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(header)) {
		return domain.NewAuthenticationError("invalid webhook signature")
	}
	return nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
