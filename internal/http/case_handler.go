package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/domain"
	"github.com/raimp001/autocase-ai/internal/service"
)

// CaseHandler 病例报告 Handler
type CaseHandler struct {
	caseService *service.CaseService
	logger      *zap.Logger
}

// NewCaseHandler 创建病例 Handler
func NewCaseHandler(caseService *service.CaseService, logger *zap.Logger) *CaseHandler {
	return &CaseHandler{
		caseService: caseService,
		logger:      logger,
	}
}

type caseResponse struct {
	CaseID            string  `json:"caseId"`
	PersonKey         string  `json:"personKey"`
	IsRareFlag        bool    `json:"isRareFlag"`
	RareFlagReason    string  `json:"rareFlagReason"`
	Status            string  `json:"status"`
	StructuredSummary *string `json:"structuredSummary,omitempty"`
	ExtractionError   *string `json:"extractionError,omitempty"`
	ExtractionRetries int     `json:"extractionRetries"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

func toCaseResponse(c *domain.CaseReport) caseResponse {
	return caseResponse{
		CaseID:            c.CaseID,
		PersonKey:         c.PersonKey,
		IsRareFlag:        c.IsRareFlag,
		RareFlagReason:    c.RareFlagReason,
		Status:            c.Status,
		StructuredSummary: c.StructuredSummary,
		ExtractionError:   c.ExtractionError,
		ExtractionRetries: c.ExtractionRetries,
		CreatedAt:         c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:         c.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// GetCase GET /core/api/v1/cases/{id}
func (h *CaseHandler) GetCase(w http.ResponseWriter, r *http.Request, caseID string) {
	c, err := h.caseService.GetCase(r.Context(), caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

// PublishCase POST /core/api/v1/cases/{id}/publish
// 发布评审门：抽取完成且摘要非空才允许进入 PUBLISHED 终态
func (h *CaseHandler) PublishCase(w http.ResponseWriter, r *http.Request, caseID string) {
	c, err := h.caseService.PublishCase(r.Context(), caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"case":    toCaseResponse(c),
	})
}
