package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/raimp001/autocase-ai/internal/domain"
)

// PostgresConsentsRepository 患者同意Repository实现
type PostgresConsentsRepository struct {
	db *sql.DB
}

// NewPostgresConsentsRepository 创建患者同意Repository
func NewPostgresConsentsRepository(db *sql.DB) *PostgresConsentsRepository {
	return &PostgresConsentsRepository{db: db}
}

// 确保实现了接口
var _ ConsentsRepository = (*PostgresConsentsRepository)(nil)

const consentColumns = `
	consent_id::text,
	person_key,
	status,
	rwe_opt_in,
	tier,
	policy_version,
	consent_text,
	wallet_address,
	content_hash,
	attestation_ref,
	attestation_status,
	signed_at,
	revoked_at,
	created_at,
	updated_at
`

type consentRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConsent(row consentRowScanner) (*domain.ConsentRecord, error) {
	var c domain.ConsentRecord
	var wallet, attestationRef sql.NullString
	var revokedAt sql.NullTime

	err := row.Scan(
		&c.ConsentID,
		&c.PersonKey,
		&c.Status,
		&c.OptInRwe,
		&c.Tier,
		&c.PolicyVersion,
		&c.ConsentText,
		&wallet,
		&c.ContentHash,
		&attestationRef,
		&c.AttestationStatus,
		&c.SignedAt,
		&revokedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if wallet.Valid {
		c.WalletAddress = &wallet.String
	}
	if attestationRef.Valid {
		c.AttestationRef = &attestationRef.String
	}
	if revokedAt.Valid {
		c.RevokedAt = &revokedAt.Time
	}

	return &c, nil
}

// UpsertGranted 写入授予记录，并在同一事务内连带迁移 CONSENT_PENDING 病例
func (r *PostgresConsentsRepository) UpsertGranted(ctx context.Context, rec *domain.ConsentRecord) (*domain.ConsentRecord, []FlaggedCase, error) {
	if rec.PersonKey == "" {
		return nil, nil, fmt.Errorf("person_key is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 重新授予覆盖旧记录：content_hash 换新、attestation 归零、revoked_at 清空
	upsert := `
		INSERT INTO consents (person_key, status, rwe_opt_in, tier, policy_version,
		                      consent_text, wallet_address, content_hash,
		                      attestation_status, signed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (person_key) DO UPDATE SET
			status = EXCLUDED.status,
			rwe_opt_in = EXCLUDED.rwe_opt_in,
			tier = EXCLUDED.tier,
			policy_version = EXCLUDED.policy_version,
			consent_text = EXCLUDED.consent_text,
			wallet_address = EXCLUDED.wallet_address,
			content_hash = EXCLUDED.content_hash,
			attestation_ref = NULL,
			attestation_status = EXCLUDED.attestation_status,
			signed_at = NOW(),
			revoked_at = NULL,
			updated_at = NOW()
		RETURNING ` + consentColumns

	var walletArg interface{}
	if rec.WalletAddress != nil {
		walletArg = *rec.WalletAddress
	}

	saved, err := scanConsent(tx.QueryRowContext(ctx, upsert,
		rec.PersonKey, rec.Status, rec.OptInRwe, rec.Tier, rec.PolicyVersion,
		rec.ConsentText, walletArg, rec.ContentHash, rec.AttestationStatus,
	))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upsert consent: %w", err)
	}

	// 满足入选条件时，原子地把该患者所有待同意病例推进到 FLAGGED
	var flagged []FlaggedCase
	if saved.Eligible() {
		rows, err := tx.QueryContext(ctx, `
			UPDATE case_reports
			SET status = $2, updated_at = NOW()
			WHERE person_key = $1 AND status = $3
			RETURNING case_id::text, emr_narrative
		`, rec.PersonKey, domain.CaseStatusFlagged, domain.CaseStatusConsentPending)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to flag pending cases: %w", err)
		}
		for rows.Next() {
			var fc FlaggedCase
			if err := rows.Scan(&fc.CaseID, &fc.EmrNarrative); err != nil {
				rows.Close()
				return nil, nil, fmt.Errorf("failed to scan flagged case: %w", err)
			}
			flagged = append(flagged, fc)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to iterate flagged cases: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit consent transaction: %w", err)
	}

	return saved, flagged, nil
}

// GetByPersonKey 按患者键获取同意记录
func (r *PostgresConsentsRepository) GetByPersonKey(ctx context.Context, personKey string) (*domain.ConsentRecord, error) {
	if personKey == "" {
		return nil, domain.NewNotFoundError("consent", personKey)
	}

	query := `SELECT ` + consentColumns + ` FROM consents WHERE person_key = $1`

	c, err := scanConsent(r.db.QueryRowContext(ctx, query, personKey))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("consent", personKey)
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}
	return c, nil
}

// Revoke 撤销同意（覆盖层，保留既有字段）
func (r *PostgresConsentsRepository) Revoke(ctx context.Context, personKey string) (*domain.ConsentRecord, error) {
	if personKey == "" {
		return nil, domain.NewNotFoundError("consent", personKey)
	}

	query := `
		UPDATE consents
		SET status = $2, revoked_at = NOW(), updated_at = NOW()
		WHERE person_key = $1
		RETURNING ` + consentColumns

	c, err := scanConsent(r.db.QueryRowContext(ctx, query, personKey, domain.ConsentStatusRevoked))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("consent", personKey)
		}
		return nil, fmt.Errorf("failed to revoke consent: %w", err)
	}
	return c, nil
}

// SetAttestation 补写链上存证结果
func (r *PostgresConsentsRepository) SetAttestation(ctx context.Context, consentID string, ref *string, status string) error {
	var refArg interface{}
	if ref != nil {
		refArg = *ref
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE consents
		SET attestation_ref = $2, attestation_status = $3, updated_at = NOW()
		WHERE consent_id = $1
	`, consentID, refArg, status)
	if err != nil {
		return fmt.Errorf("failed to set consent attestation: %w", err)
	}
	return nil
}
