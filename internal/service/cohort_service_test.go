package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/domain"
	"github.com/raimp001/autocase-ai/internal/repository"
)

type mockCohortRepo struct {
	mock.Mock
}

func (m *mockCohortRepo) SelectCohortRows(ctx context.Context, conceptID int64) ([]repository.CohortRow, error) {
	args := m.Called(ctx, conceptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.CohortRow), args.Error(1)
}

func (m *mockCohortRepo) GetLatestMeasurements(ctx context.Context, personID int64, limit int) ([]repository.MeasurementValue, error) {
	args := m.Called(ctx, personID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.MeasurementValue), args.Error(1)
}

func TestSelectCohort_InvalidConcept(t *testing.T) {
	svc := NewCohortService(&mockCohortRepo{}, zap.NewNop())

	_, err := svc.SelectCohort(context.Background(), 0)
	assert.True(t, domain.IsValidation(err))

	_, err = svc.SelectCohort(context.Background(), -5)
	assert.True(t, domain.IsValidation(err))
}

func TestSelectCohort_EmptyCohortIsValid(t *testing.T) {
	repo := &mockCohortRepo{}
	svc := NewCohortService(repo, zap.NewNop())

	repo.On("SelectCohortRows", mock.Anything, int64(302849000)).Return([]repository.CohortRow{}, nil)

	sel, err := svc.SelectCohort(context.Background(), 302849000)
	require.NoError(t, err)
	assert.Equal(t, 0, sel.CohortSize)
	assert.Empty(t, sel.Entries)
	assert.Empty(t, sel.BeneficiaryWallets)
}

func TestSelectCohort_ProjectionAndWallets(t *testing.T) {
	repo := &mockCohortRepo{}
	svc := NewCohortService(repo, zap.NewNop())

	wallet := "7EYnhQoR9YM3N7UoaKRoA44Uy8JeaZV3qyouov87awMs"
	start := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	rows := []repository.CohortRow{
		{PersonID: 11, GenderConceptID: 8532, YearOfBirth: 1958, ConditionStartDate: start, ConditionSourceValue: "C45.9", LineOfTherapyCount: 2, WalletAddress: &wallet},
		{PersonID: 12, GenderConceptID: 8507, YearOfBirth: 1970, ConditionStartDate: start, ConditionSourceValue: "C45.9", LineOfTherapyCount: 0, WalletAddress: nil},
	}
	val := 4.2
	repo.On("SelectCohortRows", mock.Anything, int64(109989006)).Return(rows, nil)
	repo.On("GetLatestMeasurements", mock.Anything, int64(11), latestMeasurementLimit).Return([]repository.MeasurementValue{
		{ConceptID: 3013682, ValueAsNumber: &val, Date: start},
	}, nil)
	repo.On("GetLatestMeasurements", mock.Anything, int64(12), latestMeasurementLimit).Return(nil, nil)

	sel, err := svc.SelectCohort(context.Background(), 109989006)
	require.NoError(t, err)

	assert.Equal(t, 2, sel.CohortSize)
	require.Len(t, sel.Entries, 2)

	// 序号基于队列内位置，不携带任何源端标识
	assert.Equal(t, 0, sel.Entries[0].CohortIndex)
	assert.Equal(t, 1, sel.Entries[1].CohortIndex)
	assert.Equal(t, "2025-03-14", sel.Entries[0].ConditionStartDate)
	assert.Len(t, sel.Entries[0].LatestMeasurements, 1)
	assert.NotNil(t, sel.Entries[1].LatestMeasurements)

	// 钱包集合只含填写了地址的患者
	assert.Equal(t, []string{wallet}, sel.BeneficiaryWallets)
}

func TestSelectCohort_EntriesNeverExposeIdentifiers(t *testing.T) {
	repo := &mockCohortRepo{}
	svc := NewCohortService(repo, zap.NewNop())

	wallet := "7EYnhQoR9YM3N7UoaKRoA44Uy8JeaZV3qyouov87awMs"
	rows := []repository.CohortRow{
		{PersonID: 99, GenderConceptID: 8521, YearOfBirth: 1970, ConditionStartDate: time.Now(), ConditionSourceValue: "C38.4", WalletAddress: &wallet},
	}
	repo.On("SelectCohortRows", mock.Anything, mock.Anything).Return(rows, nil)
	repo.On("GetLatestMeasurements", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	sel, err := svc.SelectCohort(context.Background(), 302849000)
	require.NoError(t, err)

	raw, err := json.Marshal(sel.Entries)
	require.NoError(t, err)

	// 对外投影序列化后不得含钱包地址或内部 person_id
	assert.NotContains(t, string(raw), wallet)
	assert.NotContains(t, string(raw), "personId")
	assert.NotContains(t, string(raw), "person_id")
	assert.NotContains(t, string(raw), "99")
}
