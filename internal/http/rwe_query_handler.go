package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/domain"
	"github.com/raimp001/autocase-ai/internal/repository"
	"github.com/raimp001/autocase-ai/internal/royalty"
	"github.com/raimp001/autocase-ai/internal/service"
)

// RweQueryHandler B2B 付费队列查询 Handler。
// 一次请求完成：支付核验 -> 队列选取 -> 分账计算 -> 审计落库 -> 异步分账提交。
type RweQueryHandler struct {
	cohortService  *service.CohortService
	royaltyService *service.RoyaltyService
	queries        repository.RweQueriesRepository
	payment        service.PaymentVerifier
	jwtSecret      string
	logger         *zap.Logger
}

// NewRweQueryHandler 创建查询 Handler
func NewRweQueryHandler(
	cohortService *service.CohortService,
	royaltyService *service.RoyaltyService,
	queries repository.RweQueriesRepository,
	payment service.PaymentVerifier,
	jwtSecret string,
	logger *zap.Logger,
) *RweQueryHandler {
	return &RweQueryHandler{
		cohortService:  cohortService,
		royaltyService: royaltyService,
		queries:        queries,
		payment:        payment,
		jwtSecret:      jwtSecret,
		logger:         logger,
	}
}

type rweQueryRequest struct {
	ConceptID  int64  `json:"conceptId"`
	Amount     int64  `json:"amount"` // 结算币种最小单位
	PaymentRef string `json:"paymentRef"`
}

// clientClaims B2B 客户端 JWT 负载
type clientClaims struct {
	Client string `json:"client"`
	jwt.RegisteredClaims
}

// authenticate 校验 Bearer JWT（HS256），返回客户名。
// 未配置密钥时跳过认证（本地开发），客户名记为 anonymous。
func (h *RweQueryHandler) authenticate(r *http.Request) (string, error) {
	if h.jwtSecret == "" {
		return "anonymous", nil
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", domain.NewAuthenticationError("missing bearer token")
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	claims := &clientClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(h.jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", domain.NewAuthenticationError("invalid or expired token")
	}
	if claims.Client == "" {
		return "", domain.NewAuthenticationError("token missing client claim")
	}

	return claims.Client, nil
}

// HandleQuery POST /rwe/api/v1/query
func (h *RweQueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	clientName, err := h.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req rweQueryRequest
	if err := readBodyJSON(r, 64*1024, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON payload"))
		return
	}

	if req.ConceptID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("conceptId is required"))
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("amount must be positive"))
		return
	}
	if req.PaymentRef == "" {
		writeJSON(w, http.StatusBadRequest, Fail("paymentRef is required"))
		return
	}

	// 支付核验先于任何数据访问
	paid, err := h.payment.VerifyPayment(r.Context(), req.PaymentRef)
	if err != nil {
		h.logger.Error("Payment verification failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, Fail("payment gateway unavailable"))
		return
	}
	if !paid {
		writeJSON(w, http.StatusPaymentRequired, Fail("payment not completed"))
		return
	}

	selection, err := h.cohortService.SelectCohort(r.Context(), req.ConceptID)
	if err != nil {
		writeError(w, err)
		return
	}

	// 按受益患者数（有钱包者）分账，不是队列规模
	split := royalty.ComputeSplit(req.Amount, len(selection.BeneficiaryWallets))

	paymentRef := req.PaymentRef
	queryID, err := h.queries.CreateQuery(r.Context(), &domain.RweQuery{
		ClientName:        clientName,
		ConceptID:         req.ConceptID,
		RequestedAmount:   req.Amount,
		CohortSize:        selection.CohortSize,
		BeneficiaryCount:  len(selection.BeneficiaryWallets),
		PlatformShare:     split.PlatformShare,
		PhysicianShare:    split.PhysicianShare,
		PerPatientShare:   split.PerPatientShare,
		RemainderShare:    split.RemainderShare,
		PaymentRef:        &paymentRef,
		AttestationStatus: domain.AttestationPending,
	})
	if err != nil {
		h.logger.Error("Failed to persist query audit record", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to record query"))
		return
	}

	// 审计已落库，分账提交异步执行（结果补写到审计记录）
	wallets := selection.BeneficiaryWallets
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		h.royaltyService.Distribute(ctx, queryID, split, wallets)
	}()

	h.logger.Info("RWE query served",
		zap.String("query_id", queryID),
		zap.String("client", clientName),
		zap.Int64("concept_id", req.ConceptID),
		zap.Int("cohort_size", selection.CohortSize),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"queryId":    queryID,
		"cohortSize": selection.CohortSize,
		"data":       selection.Entries,
		"royaltySplit": map[string]any{
			"total":           split.Total,
			"platformShare":   split.PlatformShare,
			"physicianShare":  split.PhysicianShare,
			"patientPool":     split.PatientPool,
			"perPatientShare": split.PerPatientShare,
			"patientCount":    split.PatientCount,
			"remainderShare":  split.RemainderShare,
		},
	})
}

// GetQuery GET /rwe/api/v1/queries/{id}
func (h *RweQueryHandler) GetQuery(w http.ResponseWriter, r *http.Request, queryID string) {
	if _, err := h.authenticate(r); err != nil {
		writeError(w, err)
		return
	}

	q, err := h.queries.GetQuery(r.Context(), queryID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queryId":           q.QueryID,
		"clientName":        q.ClientName,
		"conceptId":         q.ConceptID,
		"requestedAmount":   q.RequestedAmount,
		"cohortSize":        q.CohortSize,
		"beneficiaryCount":  q.BeneficiaryCount,
		"platformShare":     q.PlatformShare,
		"physicianShare":    q.PhysicianShare,
		"perPatientShare":   q.PerPatientShare,
		"remainderShare":    q.RemainderShare,
		"attestationRef":    q.AttestationRef,
		"attestationStatus": q.AttestationStatus,
		"createdAt":         q.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}
