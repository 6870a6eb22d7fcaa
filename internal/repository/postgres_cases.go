package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/raimp001/autocase-ai/internal/domain"
)

// PostgresCasesRepository 病例报告Repository实现
type PostgresCasesRepository struct {
	db *sql.DB
}

// NewPostgresCasesRepository 创建病例报告Repository
func NewPostgresCasesRepository(db *sql.DB) *PostgresCasesRepository {
	return &PostgresCasesRepository{db: db}
}

// 确保实现了接口
var _ CasesRepository = (*PostgresCasesRepository)(nil)

const caseColumns = `
	case_id::text,
	person_id,
	person_key,
	event_hash,
	emr_narrative,
	is_rare_flag,
	rare_flag_reason,
	status,
	structured_summary,
	extraction_error,
	extraction_retries,
	created_at,
	updated_at
`

func scanCase(row *sql.Row) (*domain.CaseReport, error) {
	var c domain.CaseReport
	var summary, extractionErr sql.NullString

	err := row.Scan(
		&c.CaseID,
		&c.PersonID,
		&c.PersonKey,
		&c.EventHash,
		&c.EmrNarrative,
		&c.IsRareFlag,
		&c.RareFlagReason,
		&c.Status,
		&summary,
		&extractionErr,
		&c.ExtractionRetries,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if summary.Valid {
		c.StructuredSummary = &summary.String
	}
	if extractionErr.Valid {
		c.ExtractionError = &extractionErr.String
	}

	return &c, nil
}

// CreateCase 条件插入病例（按 event_hash 幂等，at-most-one-winner）
func (r *PostgresCasesRepository) CreateCase(ctx context.Context, c *domain.CaseReport) (bool, *domain.CaseReport, error) {
	if c.EventHash == "" || c.PersonKey == "" {
		return false, nil, fmt.Errorf("event_hash and person_key are required")
	}

	insert := `
		INSERT INTO case_reports (person_id, person_key, event_hash, emr_narrative,
		                          is_rare_flag, rare_flag_reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_hash) DO NOTHING
		RETURNING ` + caseColumns

	row := r.db.QueryRowContext(ctx, insert,
		c.PersonID, c.PersonKey, c.EventHash, c.EmrNarrative,
		c.IsRareFlag, c.RareFlagReason, c.Status,
	)

	created, err := scanCase(row)
	if err == nil {
		return true, created, nil
	}
	if err != sql.ErrNoRows {
		return false, nil, fmt.Errorf("failed to create case: %w", err)
	}

	// 冲突：同一事件已有病例，返回现有记录（幂等，不是错误）
	existing, err := r.getByEventHash(ctx, c.EventHash)
	if err != nil {
		return false, nil, fmt.Errorf("failed to load existing case after conflict: %w", err)
	}
	return false, existing, nil
}

func (r *PostgresCasesRepository) getByEventHash(ctx context.Context, eventHash string) (*domain.CaseReport, error) {
	query := `SELECT ` + caseColumns + ` FROM case_reports WHERE event_hash = $1`
	return scanCase(r.db.QueryRowContext(ctx, query, eventHash))
}

// GetCase 按 case_id 获取病例
func (r *PostgresCasesRepository) GetCase(ctx context.Context, caseID string) (*domain.CaseReport, error) {
	if caseID == "" {
		return nil, domain.NewNotFoundError("case", caseID)
	}

	query := `SELECT ` + caseColumns + ` FROM case_reports WHERE case_id = $1`

	c, err := scanCase(r.db.QueryRowContext(ctx, query, caseID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("case", caseID)
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

// ListCasesByPersonKey 按患者键列出病例
func (r *PostgresCasesRepository) ListCasesByPersonKey(ctx context.Context, personKey string) ([]*domain.CaseReport, error) {
	if personKey == "" {
		return []*domain.CaseReport{}, nil
	}

	query := `SELECT ` + caseColumns + ` FROM case_reports WHERE person_key = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, personKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []*domain.CaseReport
	for rows.Next() {
		var c domain.CaseReport
		var summary, extractionErr sql.NullString
		if err := rows.Scan(
			&c.CaseID, &c.PersonID, &c.PersonKey, &c.EventHash, &c.EmrNarrative,
			&c.IsRareFlag, &c.RareFlagReason, &c.Status,
			&summary, &extractionErr, &c.ExtractionRetries,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		if summary.Valid {
			c.StructuredSummary = &summary.String
		}
		if extractionErr.Valid {
			c.ExtractionError = &extractionErr.String
		}
		cases = append(cases, &c)
	}
	return cases, rows.Err()
}

// SetExtractionResult 写入结构化摘要并迁移 FLAGGED -> OMOP_EXTRACTED
func (r *PostgresCasesRepository) SetExtractionResult(ctx context.Context, caseID string, summary string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE case_reports
		SET structured_summary = $2,
		    extraction_error = NULL,
		    status = $3,
		    updated_at = NOW()
		WHERE case_id = $1 AND status = $4
	`, caseID, summary, domain.CaseStatusOmopExtracted, domain.CaseStatusFlagged)
	if err != nil {
		return fmt.Errorf("failed to set extraction result: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("case %s is not in %s status", caseID, domain.CaseStatusFlagged)
	}
	return nil
}

// SetExtractionFailure 记录抽取失败（状态不变，失败对病例记录可见）
func (r *PostgresCasesRepository) SetExtractionFailure(ctx context.Context, caseID string, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE case_reports
		SET extraction_error = $2,
		    extraction_retries = extraction_retries + 1,
		    updated_at = NOW()
		WHERE case_id = $1
	`, caseID, errMsg)
	if err != nil {
		return fmt.Errorf("failed to record extraction failure: %w", err)
	}
	return nil
}

// PublishCase 发布评审门：OMOP_EXTRACTED 且摘要非空才允许发布
func (r *PostgresCasesRepository) PublishCase(ctx context.Context, caseID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE case_reports
		SET status = $2, updated_at = NOW()
		WHERE case_id = $1 AND status = $3 AND structured_summary IS NOT NULL
	`, caseID, domain.CaseStatusPublished, domain.CaseStatusOmopExtracted)
	if err != nil {
		return fmt.Errorf("failed to publish case: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("case %s is not eligible for publication", caseID)
	}
	return nil
}
