package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/domain"
	"github.com/raimp001/autocase-ai/internal/repository"
)

// 默认同意文书
const defaultConsentText = "AutoCase Standard Oncology Data Consent v1.0"

// 目标链（Solana）地址文法
var solanaAddressRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// ConsentRequest 同意授予请求
type ConsentRequest struct {
	PersonKey     string  `json:"personKey"`
	OptInRwe      *bool   `json:"optInRwe"`
	Tier          int     `json:"tier,omitempty"`
	PolicyVersion string  `json:"policyVersion,omitempty"`
	ConsentText   string  `json:"consentText,omitempty"`
	WalletAddress *string `json:"walletAddress,omitempty"`
}

// consentHashPayload content_hash 的规范化负载。
// 字段顺序由结构体定义固定；钱包地址是支付路由元数据，刻意排除在外。
type consentHashPayload struct {
	PersonKey     string `json:"personKey"`
	OptInRwe      bool   `json:"optInRwe"`
	Tier          int    `json:"tier"`
	PolicyVersion string `json:"policyVersion"`
	ConsentText   string `json:"consentText"`
	Timestamp     string `json:"timestamp"`
}

// ConsentService 同意账本服务：本地持久写入优先，链上存证为尽力而为的旁路
type ConsentService struct {
	consents repository.ConsentsRepository
	queue    ExtractionEnqueuer
	attester Attester
	logger   *zap.Logger
}

// NewConsentService 创建同意服务
func NewConsentService(
	consents repository.ConsentsRepository,
	queue ExtractionEnqueuer,
	attester Attester,
	logger *zap.Logger,
) *ConsentService {
	return &ConsentService{
		consents: consents,
		queue:    queue,
		attester: attester,
		logger:   logger,
	}
}

// RecordConsent 记录同意授予。
// 持久写入完成即成功返回；存证失败/超时只体现在 attestation_status 上。
// 授予 opt-in 时该患者所有 CONSENT_PENDING 病例原子迁移到 FLAGGED 并入队抽取。
func (s *ConsentService) RecordConsent(ctx context.Context, req ConsentRequest) (*domain.ConsentRecord, error) {
	if req.PersonKey == "" {
		return nil, domain.NewValidationError("personKey", "required")
	}
	if req.OptInRwe == nil {
		return nil, domain.NewValidationError("optInRwe", "required boolean")
	}
	if req.WalletAddress != nil && *req.WalletAddress != "" && !solanaAddressRe.MatchString(*req.WalletAddress) {
		return nil, domain.NewValidationError("walletAddress", "invalid Solana wallet address")
	}

	optIn := *req.OptInRwe

	tier := req.Tier
	if tier == 0 {
		if optIn {
			tier = 2
		} else {
			tier = 1
		}
	}
	if tier < 1 || tier > 3 {
		return nil, domain.NewValidationError("tier", "must be 1-3")
	}

	policyVersion := req.PolicyVersion
	if policyVersion == "" {
		policyVersion = "1.0"
	}
	consentText := req.ConsentText
	if consentText == "" {
		consentText = defaultConsentText
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	contentHash, err := hashConsentPayload(consentHashPayload{
		PersonKey:     req.PersonKey,
		OptInRwe:      optIn,
		Tier:          tier,
		PolicyVersion: policyVersion,
		ConsentText:   consentText,
		Timestamp:     timestamp,
	})
	if err != nil {
		return nil, err
	}

	var wallet *string
	if req.WalletAddress != nil && *req.WalletAddress != "" {
		wallet = req.WalletAddress
	}

	saved, flagged, err := s.consents.UpsertGranted(ctx, &domain.ConsentRecord{
		PersonKey:         req.PersonKey,
		Status:            domain.ConsentStatusGranted,
		OptInRwe:          optIn,
		Tier:              tier,
		PolicyVersion:     policyVersion,
		ConsentText:       consentText,
		WalletAddress:     wallet,
		ContentHash:       contentHash,
		AttestationStatus: domain.AttestationPending,
	})
	if err != nil {
		return nil, err
	}

	// 被连带迁移到 FLAGGED 的病例进入抽取队列。
	// 入队失败非致命：失败病例留在 FLAGGED，由带外补偿重新入队。
	for _, fc := range flagged {
		if err := s.queue.Enqueue(ctx, ExtractionJob{CaseID: fc.CaseID, Narrative: fc.EmrNarrative, Attempt: 1}); err != nil {
			s.logger.Error("Failed to enqueue extraction for flagged case",
				zap.String("case_id", fc.CaseID),
				zap.Error(err),
			)
		}
	}

	// 两阶段写：本地已提交，链上存证异步尽力而为
	go s.attestConsent(saved)

	return saved, nil
}

// attestConsent 异步存证最近一次授予的 content_hash
func (s *ConsentService) attestConsent(rec *domain.ConsentRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	memo := fmt.Sprintf("AutoCase Consent | PersonKey:%s | SHA256:%s", rec.PersonKey, rec.ContentHash)
	ref, err := s.attester.Attest(ctx, memo)

	switch {
	case err == nil:
		if uerr := s.consents.SetAttestation(ctx, rec.ConsentID, &ref, domain.AttestationConfirmed); uerr != nil {
			s.logger.Error("Failed to record consent attestation ref", zap.Error(uerr))
		}
	case errors.Is(err, ErrLedgerTimeout):
		// 超时：结果未知，区别于失败，不可盲目重试
		if uerr := s.consents.SetAttestation(ctx, rec.ConsentID, nil, domain.AttestationUnknown); uerr != nil {
			s.logger.Error("Failed to mark consent attestation unknown", zap.Error(uerr))
		}
	default:
		// 失败：保持 PENDING，可重试；对同意记录本身非致命
		s.logger.Error("Consent attestation failed (non-fatal)",
			zap.String("consent_id", rec.ConsentID),
			zap.Error(err),
		)
	}
}

// GetConsent 查询同意状态
func (s *ConsentService) GetConsent(ctx context.Context, personKey string) (*domain.ConsentRecord, error) {
	if personKey == "" {
		return nil, domain.NewValidationError("personKey", "required")
	}
	return s.consents.GetByPersonKey(ctx, personKey)
}

// RevokeConsent 撤销同意（覆盖层，保留审计轨迹）
func (s *ConsentService) RevokeConsent(ctx context.Context, personKey string) (*domain.ConsentRecord, error) {
	if personKey == "" {
		return nil, domain.NewValidationError("personKey", "required")
	}

	rec, err := s.consents.Revoke(ctx, personKey)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Consent revoked", zap.String("person_key", personKey))
	return rec, nil
}

func hashConsentPayload(p consentHashPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal consent payload: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
