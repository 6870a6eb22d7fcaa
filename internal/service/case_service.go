package service

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/classifier"
	"github.com/raimp001/autocase-ai/internal/deid"
	"github.com/raimp001/autocase-ai/internal/domain"
	"github.com/raimp001/autocase-ai/internal/repository"
)

// 叙述文本截断上限
const maxNarrativeChars = 10000

// FhirResource 入站 FHIR 资源（只解析核心关心的字段）
type FhirResource struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Code         *struct {
		Coding []classifier.Coding `json:"coding"`
	} `json:"code,omitempty"`
	Text *struct {
		Div string `json:"div"`
	} `json:"text,omitempty"`
}

// FhirEntry Bundle entry
type FhirEntry struct {
	Resource FhirResource `json:"resource"`
}

// FhirBundle 入站临床事件（瞬态，核心在分类调用之外不持有）
type FhirBundle struct {
	ResourceType string      `json:"resourceType"`
	Entry        []FhirEntry `json:"entry,omitempty"`
	Text         *struct {
		Div string `json:"div"`
	} `json:"text,omitempty"`
}

// IngestResult 事件摄入结果
type IngestResult struct {
	CaseID     string `json:"caseId,omitempty"`
	PersonKey  string `json:"personKey,omitempty"`
	IsRare     bool   `json:"isRare"`
	FlagReason string `json:"flagReason,omitempty"`
	Status     string `json:"status,omitempty"`
	Duplicate  bool   `json:"duplicate,omitempty"`
}

// CaseService 病例生命周期服务（状态机归它独占，状态只经定义好的迁移变更）
type CaseService struct {
	cases    repository.CasesRepository
	persons  repository.PersonsRepository
	deidSalt string
	logger   *zap.Logger
}

// NewCaseService 创建病例服务
func NewCaseService(
	cases repository.CasesRepository,
	persons repository.PersonsRepository,
	deidSalt string,
	logger *zap.Logger,
) *CaseService {
	return &CaseService{
		cases:    cases,
		persons:  persons,
		deidSalt: deidSalt,
		logger:   logger,
	}
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func stripHTML(div string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(div, " "))
}

// IngestBundle 处理一个入站临床事件。
// eventHash 是请求原始字节的 SHA-256，作为幂等键：重复投递返回原病例。
// 非罕见 bundle 只应答不建病例。抽取不在此触发（等待同意授予）。
func (s *CaseService) IngestBundle(ctx context.Context, bundle *FhirBundle, eventHash string) (*IngestResult, error) {
	if bundle.ResourceType != "Bundle" {
		return nil, domain.NewValidationError("resourceType", "expected FHIR Bundle")
	}

	var patient *FhirResource
	var codings []classifier.Coding
	var narrativeParts []string

	for i := range bundle.Entry {
		res := &bundle.Entry[i].Resource
		switch res.ResourceType {
		case "Patient":
			if patient == nil {
				patient = res
			}
		case "Condition":
			if res.Code != nil {
				codings = append(codings, res.Code.Coding...)
			}
		case "DocumentReference", "DiagnosticReport":
			if res.Text != nil {
				if part := stripHTML(res.Text.Div); part != "" {
					narrativeParts = append(narrativeParts, part)
				}
			}
		}
	}

	if patient == nil {
		return nil, domain.NewValidationError("entry", "no Patient resource in Bundle")
	}

	// 原始标识缺失时用新鲜随机标识替代，保证派生键与任何真实标识不可关联
	rawMrn := patient.ID
	if rawMrn == "" {
		rawMrn = deid.RandomSourceID()
	}
	personKey := deid.DeriveKey(rawMrn, s.deidSalt)

	narrative := strings.Join(narrativeParts, "\n\n")
	if narrative == "" && bundle.Text != nil {
		narrative = stripHTML(bundle.Text.Div)
	}
	if narrative == "" {
		narrative = "No narrative available"
	}
	if len(narrative) > maxNarrativeChars {
		narrative = narrative[:maxNarrativeChars]
	}

	verdict := classifier.Classify(codings)
	if !verdict.IsRare {
		// 非罕见：应答即结束，不建病例、无副作用
		s.logger.Debug("Bundle not flagged as rare", zap.Int("codings", len(codings)))
		return &IngestResult{IsRare: false}, nil
	}

	person, err := s.persons.UpsertPerson(ctx, personKey)
	if err != nil {
		return nil, err
	}

	created, c, err := s.cases.CreateCase(ctx, &domain.CaseReport{
		PersonID:       person.PersonID,
		PersonKey:      personKey,
		EventHash:      eventHash,
		EmrNarrative:   narrative,
		IsRareFlag:     true,
		RareFlagReason: verdict.Reason,
		Status:         domain.CaseStatusConsentPending,
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.Info("Rare oncology case flagged",
			zap.String("case_id", c.CaseID),
			zap.String("status", c.Status),
		)
	} else {
		s.logger.Info("Duplicate event, returning existing case",
			zap.String("case_id", c.CaseID),
			zap.String("event_hash", eventHash),
		)
	}

	return &IngestResult{
		CaseID:     c.CaseID,
		PersonKey:  c.PersonKey,
		IsRare:     true,
		FlagReason: c.RareFlagReason,
		Status:     c.Status,
		Duplicate:  !created,
	}, nil
}

// GetCase 获取病例详情
func (s *CaseService) GetCase(ctx context.Context, caseID string) (*domain.CaseReport, error) {
	return s.cases.GetCase(ctx, caseID)
}

// PublishCase 发布评审门：OMOP_EXTRACTED 且摘要已填充才允许发布
func (s *CaseService) PublishCase(ctx context.Context, caseID string) (*domain.CaseReport, error) {
	if err := s.cases.PublishCase(ctx, caseID); err != nil {
		return nil, err
	}

	s.logger.Info("Case published", zap.String("case_id", caseID))
	return s.cases.GetCase(ctx, caseID)
}
