package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raimp001/autocase-ai/internal/deid"
	"github.com/raimp001/autocase-ai/internal/domain"
)

type mockCasesRepo struct {
	mock.Mock
}

func (m *mockCasesRepo) CreateCase(ctx context.Context, c *domain.CaseReport) (bool, *domain.CaseReport, error) {
	args := m.Called(ctx, c)
	var result *domain.CaseReport
	if args.Get(1) != nil {
		result = args.Get(1).(*domain.CaseReport)
	}
	return args.Bool(0), result, args.Error(2)
}

func (m *mockCasesRepo) GetCase(ctx context.Context, caseID string) (*domain.CaseReport, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CaseReport), args.Error(1)
}

func (m *mockCasesRepo) ListCasesByPersonKey(ctx context.Context, personKey string) ([]*domain.CaseReport, error) {
	args := m.Called(ctx, personKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CaseReport), args.Error(1)
}

func (m *mockCasesRepo) SetExtractionResult(ctx context.Context, caseID string, summary string) error {
	args := m.Called(ctx, caseID, summary)
	return args.Error(0)
}

func (m *mockCasesRepo) SetExtractionFailure(ctx context.Context, caseID string, errMsg string) error {
	args := m.Called(ctx, caseID, errMsg)
	return args.Error(0)
}

func (m *mockCasesRepo) PublishCase(ctx context.Context, caseID string) error {
	args := m.Called(ctx, caseID)
	return args.Error(0)
}

type mockPersonsRepo struct {
	mock.Mock
}

func (m *mockPersonsRepo) UpsertPerson(ctx context.Context, personSourceValue string) (*domain.Person, error) {
	args := m.Called(ctx, personSourceValue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Person), args.Error(1)
}

func (m *mockPersonsRepo) GetPersonBySourceValue(ctx context.Context, personSourceValue string) (*domain.Person, error) {
	args := m.Called(ctx, personSourceValue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Person), args.Error(1)
}

func (m *mockPersonsRepo) InsertCondition(ctx context.Context, c *domain.ConditionOccurrence) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockPersonsRepo) InsertDrug(ctx context.Context, d *domain.DrugExposure) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockPersonsRepo) InsertMeasurement(ctx context.Context, mm *domain.Measurement) error {
	args := m.Called(ctx, mm)
	return args.Error(0)
}

const testSalt = "test-salt"

func rareBundle(t *testing.T) *FhirBundle {
	t.Helper()

	raw := `{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {"resourceType": "Patient", "id": "MRN-001"}},
			{"resource": {"resourceType": "Condition", "code": {"coding": [
				{"system": "http://hl7.org/fhir/sid/icd-10-cm", "code": "C45.9", "display": "Mesothelioma, unspecified"}
			]}}},
			{"resource": {"resourceType": "DiagnosticReport", "text": {"div": "<div>Pleural biopsy consistent with <b>mesothelioma</b>.</div>"}}}
		]
	}`

	var bundle FhirBundle
	require.NoError(t, json.Unmarshal([]byte(raw), &bundle))
	return &bundle
}

func TestIngestBundle_RareCaseCreated(t *testing.T) {
	cases := &mockCasesRepo{}
	persons := &mockPersonsRepo{}
	svc := NewCaseService(cases, persons, testSalt, zap.NewNop())

	expectedKey := deid.DeriveKey("MRN-001", testSalt)
	persons.On("UpsertPerson", mock.Anything, expectedKey).Return(&domain.Person{PersonID: 7, PersonSourceValue: expectedKey}, nil)
	cases.On("CreateCase", mock.Anything, mock.MatchedBy(func(c *domain.CaseReport) bool {
		return c.PersonID == 7 &&
			c.PersonKey == expectedKey &&
			c.EventHash == "hash-1" &&
			c.IsRareFlag &&
			c.Status == domain.CaseStatusConsentPending &&
			strings.Contains(c.RareFlagReason, "ICD-10:C45.9") &&
			strings.Contains(c.EmrNarrative, "mesothelioma") &&
			!strings.Contains(c.EmrNarrative, "<div>") // HTML 已剥除
	})).Return(true, &domain.CaseReport{
		CaseID:         "case-1",
		PersonKey:      expectedKey,
		IsRareFlag:     true,
		RareFlagReason: "Rare oncology codes detected: ICD-10:C45.9 (Mesothelioma, unspecified)",
		Status:         domain.CaseStatusConsentPending,
	}, nil)

	result, err := svc.IngestBundle(context.Background(), rareBundle(t), "hash-1")

	require.NoError(t, err)
	assert.True(t, result.IsRare)
	assert.False(t, result.Duplicate)
	assert.Equal(t, "case-1", result.CaseID)
	assert.Equal(t, domain.CaseStatusConsentPending, result.Status)
	// 响应暴露去标识化键，不暴露原始 MRN
	assert.NotEqual(t, "MRN-001", result.PersonKey)
	cases.AssertExpectations(t)
}

func TestIngestBundle_NonRareCreatesNothing(t *testing.T) {
	cases := &mockCasesRepo{}
	persons := &mockPersonsRepo{}
	svc := NewCaseService(cases, persons, testSalt, zap.NewNop())

	bundle := &FhirBundle{
		ResourceType: "Bundle",
		Entry: []FhirEntry{
			{Resource: FhirResource{ResourceType: "Patient", ID: "MRN-002"}},
		},
	}
	raw := `{"resource": {"resourceType": "Condition", "code": {"coding": [{"system": "http://hl7.org/fhir/sid/icd-10-cm", "code": "C50.9"}]}}}`
	var entry FhirEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	bundle.Entry = append(bundle.Entry, entry)

	result, err := svc.IngestBundle(context.Background(), bundle, "hash-2")

	require.NoError(t, err)
	assert.False(t, result.IsRare)
	assert.Empty(t, result.CaseID)
	cases.AssertNotCalled(t, "CreateCase", mock.Anything, mock.Anything)
	persons.AssertNotCalled(t, "UpsertPerson", mock.Anything, mock.Anything)
}

func TestIngestBundle_DuplicateEventReturnsExistingCase(t *testing.T) {
	cases := &mockCasesRepo{}
	persons := &mockPersonsRepo{}
	svc := NewCaseService(cases, persons, testSalt, zap.NewNop())

	persons.On("UpsertPerson", mock.Anything, mock.Anything).Return(&domain.Person{PersonID: 7}, nil)
	cases.On("CreateCase", mock.Anything, mock.Anything).Return(false, &domain.CaseReport{
		CaseID:    "case-1",
		PersonKey: "existing-key",
		Status:    domain.CaseStatusFlagged,
	}, nil)

	result, err := svc.IngestBundle(context.Background(), rareBundle(t), "hash-1")

	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, "case-1", result.CaseID)
	// 重复投递返回病例当前状态（可能已前进）
	assert.Equal(t, domain.CaseStatusFlagged, result.Status)
}

func TestIngestBundle_RejectsNonBundle(t *testing.T) {
	svc := NewCaseService(&mockCasesRepo{}, &mockPersonsRepo{}, testSalt, zap.NewNop())

	_, err := svc.IngestBundle(context.Background(), &FhirBundle{ResourceType: "Patient"}, "h")
	assert.True(t, domain.IsValidation(err))
}

func TestIngestBundle_RejectsMissingPatient(t *testing.T) {
	svc := NewCaseService(&mockCasesRepo{}, &mockPersonsRepo{}, testSalt, zap.NewNop())

	_, err := svc.IngestBundle(context.Background(), &FhirBundle{ResourceType: "Bundle"}, "h")
	assert.True(t, domain.IsValidation(err))
}

func TestIngestBundle_MissingNarrativeFallback(t *testing.T) {
	cases := &mockCasesRepo{}
	persons := &mockPersonsRepo{}
	svc := NewCaseService(cases, persons, testSalt, zap.NewNop())

	raw := `{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {"resourceType": "Patient", "id": "MRN-003"}},
			{"resource": {"resourceType": "Condition", "code": {"coding": [
				{"system": "http://snomed.info/sct", "code": "109989006"}
			]}}}
		]
	}`
	var bundle FhirBundle
	require.NoError(t, json.Unmarshal([]byte(raw), &bundle))

	persons.On("UpsertPerson", mock.Anything, mock.Anything).Return(&domain.Person{PersonID: 9}, nil)
	cases.On("CreateCase", mock.Anything, mock.MatchedBy(func(c *domain.CaseReport) bool {
		return c.EmrNarrative == "No narrative available"
	})).Return(true, &domain.CaseReport{CaseID: "case-3", Status: domain.CaseStatusConsentPending}, nil)

	_, err := svc.IngestBundle(context.Background(), &bundle, "hash-3")

	require.NoError(t, err)
	cases.AssertExpectations(t)
}
