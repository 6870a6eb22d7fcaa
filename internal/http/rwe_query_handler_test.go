package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/config"
	"github.com/raimp001/autocase-ai/internal/domain"
	"github.com/raimp001/autocase-ai/internal/repository"
	"github.com/raimp001/autocase-ai/internal/royalty"
	"github.com/raimp001/autocase-ai/internal/service"
)

// ==================== Mocks ====================

type stubCohortRepo struct {
	mock.Mock
}

func (m *stubCohortRepo) SelectCohortRows(ctx context.Context, conceptID int64) ([]repository.CohortRow, error) {
	args := m.Called(ctx, conceptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.CohortRow), args.Error(1)
}

func (m *stubCohortRepo) GetLatestMeasurements(ctx context.Context, personID int64, limit int) ([]repository.MeasurementValue, error) {
	args := m.Called(ctx, personID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.MeasurementValue), args.Error(1)
}

type stubQueriesRepo struct {
	mock.Mock
}

func (m *stubQueriesRepo) CreateQuery(ctx context.Context, q *domain.RweQuery) (string, error) {
	args := m.Called(ctx, q)
	return args.String(0), args.Error(1)
}

func (m *stubQueriesRepo) GetQuery(ctx context.Context, queryID string) (*domain.RweQuery, error) {
	args := m.Called(ctx, queryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RweQuery), args.Error(1)
}

func (m *stubQueriesRepo) SetAttestation(ctx context.Context, queryID string, ref *string, status string) error {
	args := m.Called(ctx, queryID, ref, status)
	return args.Error(0)
}

type stubPaymentVerifier struct {
	mock.Mock
}

func (m *stubPaymentVerifier) VerifyPayment(ctx context.Context, paymentRef string) (bool, error) {
	args := m.Called(ctx, paymentRef)
	return args.Bool(0), args.Error(1)
}

type stubBatchSubmitter struct {
	mock.Mock
}

func (m *stubBatchSubmitter) SubmitBatch(ctx context.Context, transfers []royalty.Transfer, memo string) (string, error) {
	args := m.Called(ctx, transfers, memo)
	return args.String(0), args.Error(1)
}

// ==================== Fixture ====================

const testJWTSecret = "jwt-secret"

type rweFixture struct {
	handler *RweQueryHandler
	cohort  *stubCohortRepo
	queries *stubQueriesRepo
	payment *stubPaymentVerifier
	ledger  *stubBatchSubmitter
}

func setupRweHandler(t *testing.T) *rweFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &rweFixture{
		cohort:  &stubCohortRepo{},
		queries: &stubQueriesRepo{},
		payment: &stubPaymentVerifier{},
		ledger:  &stubBatchSubmitter{},
	}

	cohortService := service.NewCohortService(f.cohort, zap.NewNop())
	royaltyService := service.NewRoyaltyService(f.queries, f.ledger, client, config.RoyaltyConfig{
		PlatformWallet:  "PlatformWallet1111111111111111111111111111",
		PhysicianWallet: "PhysicianWallet111111111111111111111111111",
	}, zap.NewNop())

	f.handler = NewRweQueryHandler(cohortService, royaltyService, f.queries, f.payment, testJWTSecret, zap.NewNop())
	return f
}

func clientToken(t *testing.T, client string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, clientClaims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func queryRequest(t *testing.T, body string, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rwe/api/v1/query", bytes.NewReader([]byte(body)))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// ==================== Tests ====================

func TestHandleQuery_MissingToken(t *testing.T) {
	f := setupRweHandler(t)

	rec := httptest.NewRecorder()
	f.handler.HandleQuery(rec, queryRequest(t, `{"conceptId": 109989006, "amount": 100000, "paymentRef": "pi_1"}`, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleQuery_InvalidToken(t *testing.T) {
	f := setupRweHandler(t)

	rec := httptest.NewRecorder()
	f.handler.HandleQuery(rec, queryRequest(t, `{"conceptId": 109989006, "amount": 100000, "paymentRef": "pi_1"}`, "not-a-jwt"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleQuery_MissingFields(t *testing.T) {
	f := setupRweHandler(t)
	token := clientToken(t, "pharma-co")

	tests := []struct {
		name string
		body string
	}{
		{"missing conceptId", `{"amount": 100000, "paymentRef": "pi_1"}`},
		{"zero amount", `{"conceptId": 109989006, "amount": 0, "paymentRef": "pi_1"}`},
		{"missing paymentRef", `{"conceptId": 109989006, "amount": 100000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.handler.HandleQuery(rec, queryRequest(t, tt.body, token))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleQuery_PaymentNotCompleted(t *testing.T) {
	f := setupRweHandler(t)
	token := clientToken(t, "pharma-co")

	f.payment.On("VerifyPayment", mock.Anything, "pi_unpaid").Return(false, nil)

	rec := httptest.NewRecorder()
	f.handler.HandleQuery(rec, queryRequest(t, `{"conceptId": 109989006, "amount": 100000, "paymentRef": "pi_unpaid"}`, token))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	f.cohort.AssertNotCalled(t, "SelectCohortRows", mock.Anything, mock.Anything)
}

func TestHandleQuery_Success(t *testing.T) {
	f := setupRweHandler(t)
	token := clientToken(t, "pharma-co")

	wallet1 := "PatientWalletA1111111111111111111111111111"
	wallet2 := "PatientWalletB1111111111111111111111111111"
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := []repository.CohortRow{
		{PersonID: 11, GenderConceptID: 8532, YearOfBirth: 1958, ConditionStartDate: start, ConditionSourceValue: "C45.9", LineOfTherapyCount: 2, WalletAddress: &wallet1},
		{PersonID: 12, GenderConceptID: 8507, YearOfBirth: 1970, ConditionStartDate: start, ConditionSourceValue: "C45.9", WalletAddress: &wallet2},
		{PersonID: 13, GenderConceptID: 8521, YearOfBirth: 1970, ConditionStartDate: start, ConditionSourceValue: "C45.9"},
	}

	f.payment.On("VerifyPayment", mock.Anything, "pi_paid").Return(true, nil)
	f.cohort.On("SelectCohortRows", mock.Anything, int64(109989006)).Return(rows, nil)
	f.cohort.On("GetLatestMeasurements", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.queries.On("CreateQuery", mock.Anything, mock.MatchedBy(func(q *domain.RweQuery) bool {
		return q.ClientName == "pharma-co" &&
			q.ConceptID == 109989006 &&
			q.RequestedAmount == 100000 &&
			q.CohortSize == 3 &&
			q.BeneficiaryCount == 2 && // 只有带钱包的患者参与分账
			q.PlatformShare == 20000 &&
			q.PhysicianShare == 30000 &&
			q.PerPatientShare == 25000 &&
			q.AttestationStatus == domain.AttestationPending
	})).Return("q-1", nil)

	// 分账异步提交
	f.ledger.On("SubmitBatch", mock.Anything, mock.Anything, mock.Anything).Return("tx-1", nil).Maybe()
	f.queries.On("SetAttestation", mock.Anything, "q-1", mock.Anything, domain.AttestationConfirmed).Return(nil).Maybe()

	rec := httptest.NewRecorder()
	f.handler.HandleQuery(rec, queryRequest(t, `{"conceptId": 109989006, "amount": 100000, "paymentRef": "pi_paid"}`, token))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "q-1", resp["queryId"])
	assert.Equal(t, float64(3), resp["cohortSize"])

	split := resp["royaltySplit"].(map[string]any)
	assert.Equal(t, float64(100000), split["total"])
	assert.Equal(t, float64(20000), split["platformShare"])
	assert.Equal(t, float64(30000), split["physicianShare"])
	assert.Equal(t, float64(50000), split["patientPool"])
	assert.Equal(t, float64(25000), split["perPatientShare"])

	// 对外数据不含钱包地址
	assert.NotContains(t, rec.Body.String(), wallet1)
	assert.NotContains(t, rec.Body.String(), wallet2)

	f.queries.AssertExpectations(t)
}

func TestGetQuery_Handler(t *testing.T) {
	f := setupRweHandler(t)
	token := clientToken(t, "pharma-co")

	ref := "tx-9"
	f.queries.On("GetQuery", mock.Anything, "q-1").Return(&domain.RweQuery{
		QueryID:           "q-1",
		ClientName:        "pharma-co",
		ConceptID:         109989006,
		RequestedAmount:   100000,
		CohortSize:        3,
		BeneficiaryCount:  2,
		AttestationRef:    &ref,
		AttestationStatus: domain.AttestationConfirmed,
		CreatedAt:         time.Now(),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/rwe/api/v1/queries/q-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	f.handler.GetQuery(rec, req, "q-1")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CONFIRMED", resp["attestationStatus"])
	assert.Equal(t, "tx-9", resp["attestationRef"])
}

func TestExportQuery_Handler(t *testing.T) {
	f := setupRweHandler(t)
	token := clientToken(t, "pharma-co")

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	f.queries.On("GetQuery", mock.Anything, "q-1").Return(&domain.RweQuery{
		QueryID:   "q-1",
		ConceptID: 109989006,
	}, nil)
	f.cohort.On("SelectCohortRows", mock.Anything, int64(109989006)).Return([]repository.CohortRow{
		{PersonID: 11, GenderConceptID: 8532, YearOfBirth: 1958, ConditionStartDate: start, ConditionSourceValue: "C45.9"},
	}, nil)
	f.cohort.On("GetLatestMeasurements", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/rwe/api/v1/queries/q-1/export", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	f.handler.ExportQuery(rec, req, "q-1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}
