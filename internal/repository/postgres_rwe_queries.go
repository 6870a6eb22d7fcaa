package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/raimp001/autocase-ai/internal/domain"
)

// PostgresRweQueriesRepository 查询审计记录Repository实现
type PostgresRweQueriesRepository struct {
	db *sql.DB
}

// NewPostgresRweQueriesRepository 创建查询审计Repository
func NewPostgresRweQueriesRepository(db *sql.DB) *PostgresRweQueriesRepository {
	return &PostgresRweQueriesRepository{db: db}
}

// 确保实现了接口
var _ RweQueriesRepository = (*PostgresRweQueriesRepository)(nil)

// CreateQuery 写入审计记录
func (r *PostgresRweQueriesRepository) CreateQuery(ctx context.Context, q *domain.RweQuery) (string, error) {
	query := `
		INSERT INTO rwe_queries (client_name, concept_id, requested_amount,
			cohort_size, beneficiary_count, platform_share, physician_share,
			per_patient_share, remainder_share, payment_ref, attestation_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING query_id::text
	`

	var paymentRef interface{}
	if q.PaymentRef != nil {
		paymentRef = *q.PaymentRef
	}

	var queryID string
	err := r.db.QueryRowContext(ctx, query,
		q.ClientName, q.ConceptID, q.RequestedAmount,
		q.CohortSize, q.BeneficiaryCount, q.PlatformShare, q.PhysicianShare,
		q.PerPatientShare, q.RemainderShare, paymentRef, q.AttestationStatus,
	).Scan(&queryID)
	if err != nil {
		return "", fmt.Errorf("failed to create rwe query: %w", err)
	}

	return queryID, nil
}

// GetQuery 按 query_id 获取审计记录
func (r *PostgresRweQueriesRepository) GetQuery(ctx context.Context, queryID string) (*domain.RweQuery, error) {
	if queryID == "" {
		return nil, domain.NewNotFoundError("query", queryID)
	}

	query := `
		SELECT query_id::text, client_name, concept_id, requested_amount,
		       cohort_size, beneficiary_count, platform_share, physician_share,
		       per_patient_share, remainder_share, payment_ref,
		       attestation_ref, attestation_status, created_at
		FROM rwe_queries
		WHERE query_id = $1
	`

	var q domain.RweQuery
	var paymentRef, attestationRef sql.NullString

	err := r.db.QueryRowContext(ctx, query, queryID).Scan(
		&q.QueryID,
		&q.ClientName,
		&q.ConceptID,
		&q.RequestedAmount,
		&q.CohortSize,
		&q.BeneficiaryCount,
		&q.PlatformShare,
		&q.PhysicianShare,
		&q.PerPatientShare,
		&q.RemainderShare,
		&paymentRef,
		&attestationRef,
		&q.AttestationStatus,
		&q.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("query", queryID)
		}
		return nil, fmt.Errorf("failed to get rwe query: %w", err)
	}

	if paymentRef.Valid {
		q.PaymentRef = &paymentRef.String
	}
	if attestationRef.Valid {
		q.AttestationRef = &attestationRef.String
	}

	return &q, nil
}

// SetAttestation 补写迟到的存证结果
func (r *PostgresRweQueriesRepository) SetAttestation(ctx context.Context, queryID string, ref *string, status string) error {
	var refArg interface{}
	if ref != nil {
		refArg = *ref
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE rwe_queries
		SET attestation_ref = $2, attestation_status = $3
		WHERE query_id = $1
	`, queryID, refArg, status)
	if err != nil {
		return fmt.Errorf("failed to set query attestation: %w", err)
	}
	return nil
}
