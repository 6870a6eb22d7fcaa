package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/config"
)

// OmopCondition 抽取服务返回的病症条目
type OmopCondition struct {
	ConceptID       int64   `json:"concept_id"`   // SNOMED-CT
	SourceValue     string  `json:"source_value"` // ICD-10 / ICD-O 源码
	StartDate       string  `json:"start_date"`   // ISO 日期
	EndDate         *string `json:"end_date,omitempty"`
	StatusConceptID *int64  `json:"status_concept_id,omitempty"` // 原发 4033240 / 转移 4205430
	Confidence      float64 `json:"confidence"`                  // 0-1，抽取置信度
}

// OmopDrug 抽取服务返回的用药条目
type OmopDrug struct {
	ConceptID      int64   `json:"concept_id"` // RxNorm / HemOnc
	SourceValue    string  `json:"source_value"`
	StartDate      string  `json:"start_date"`
	EndDate        *string `json:"end_date,omitempty"`
	RouteConceptID *int64  `json:"route_concept_id,omitempty"`
	LineOfTherapy  *int    `json:"line_of_therapy,omitempty"` // 1L, 2L, ...
}

// OmopMeasurement 抽取服务返回的检验条目
type OmopMeasurement struct {
	ConceptID        int64    `json:"concept_id"` // LOINC
	SourceValue      string   `json:"source_value"`
	Date             string   `json:"date"`
	ValueAsNumber    *float64 `json:"value_as_number,omitempty"`
	ValueAsConceptID *int64   `json:"value_as_concept_id,omitempty"` // 阳性 9191 / 阴性 9189
	UnitConceptID    *int64   `json:"unit_concept_id,omitempty"`
}

// OmopAbstraction 叙述文本 -> OMOP 结构化抽取结果
type OmopAbstraction struct {
	Conditions        []OmopCondition   `json:"conditions"`
	Drugs             []OmopDrug        `json:"drugs"`
	Measurements      []OmopMeasurement `json:"measurements"`
	NarrativeSummary  string            `json:"narrative_summary"`
	RareFlagReasoning string            `json:"rare_flag_reasoning"`
	OverallConfidence float64           `json:"overall_confidence"`
}

// Extractor 抽取协作方能力（测试中可替换）
type Extractor interface {
	Extract(ctx context.Context, narrativeText string) (*OmopAbstraction, error)
}

// ExtractionClient 外部临床抽取服务客户端
type ExtractionClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewExtractionClient 创建抽取服务客户端
func NewExtractionClient(cfg config.ExtractionConfig, logger *zap.Logger) *ExtractionClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(60*time.Second). // LLM 抽取耗时较长
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &ExtractionClient{
		httpClient: client,
		logger:     logger,
	}
}

var _ Extractor = (*ExtractionClient)(nil)

type extractionRequest struct {
	NarrativeText string `json:"narrative_text"`
}

// Extract 调用抽取服务，将叙述文本转为 OMOP 结构化数据
func (c *ExtractionClient) Extract(ctx context.Context, narrativeText string) (*OmopAbstraction, error) {
	c.logger.Info("Calling extraction service",
		zap.Int("narrative_length", len(narrativeText)),
	)

	var abstraction OmopAbstraction
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(extractionRequest{NarrativeText: narrativeText}).
		SetResult(&abstraction).
		Post("/v1/extract")

	if err != nil {
		return nil, fmt.Errorf("failed to call extraction service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("extraction service returned %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("Extraction completed",
		zap.Int("conditions", len(abstraction.Conditions)),
		zap.Int("drugs", len(abstraction.Drugs)),
		zap.Int("measurements", len(abstraction.Measurements)),
		zap.Float64("overall_confidence", abstraction.OverallConfidence),
	)

	return &abstraction, nil
}
