package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gl-reconciliation-backend/internal/apperrors"
	"gl-reconciliation-backend/internal/platform/database"
)

// ResponsibilityRepository holds the reference data mapping (company, account)
// or FS group to the user owning each role. Mutated only by administrative
// upserts, read by the resolver at ingestion time.
type ResponsibilityRepository struct {
	db *database.DB
}

// NewResponsibilityRepository creates a new ResponsibilityRepository.
func NewResponsibilityRepository(db *database.DB) *ResponsibilityRepository {
	return &ResponsibilityRepository{db: db}
}

// FindOwner returns the user assigned to role for (company, account), or nil
// when no mapping exists.
func (r *ResponsibilityRepository) FindOwner(ctx context.Context, companyCode, glAccount string, role Role) (*string, error) {
	query := `
		SELECT user_id FROM gl_responsibilities
		WHERE company_code = $1 AND gl_account = $2 AND role = $3
		LIMIT 1
	`

	var userID string
	err := r.db.QueryRow(ctx, query, companyCode, glAccount, role).Scan(&userID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to look up responsibility")
	}
	return &userID, nil
}

// FindGroupOwner returns the FS-group fallback assignment, or nil.
func (r *ResponsibilityRepository) FindGroupOwner(ctx context.Context, fsGroup string, role Role) (*string, error) {
	query := `
		SELECT user_id FROM gl_fs_responsibilities
		WHERE fs_group = $1 AND role = $2
		LIMIT 1
	`

	var userID string
	err := r.db.QueryRow(ctx, query, fsGroup, role).Scan(&userID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to look up group responsibility")
	}
	return &userID, nil
}

// UpsertMappings inserts or replaces line-level responsibility rows in one
// transaction.
func (r *ResponsibilityRepository) UpsertMappings(ctx context.Context, mappings []ResponsibilityMapping) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO gl_responsibilities (id, company_code, gl_account, role, user_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (company_code, gl_account, role)
			DO UPDATE SET user_id = EXCLUDED.user_id
		`
		for _, m := range mappings {
			id := m.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := tx.Exec(ctx, query, id, m.CompanyCode, m.GLAccount, m.Role, m.UserID); err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to upsert responsibility")
			}
		}
		return nil
	})
}

// UpsertGroupMappings inserts or replaces FS-group fallback rows.
func (r *ResponsibilityRepository) UpsertGroupMappings(ctx context.Context, mappings []GroupResponsibilityMapping) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO gl_fs_responsibilities (id, fs_group, role, user_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (fs_group, role)
			DO UPDATE SET user_id = EXCLUDED.user_id
		`
		for _, m := range mappings {
			id := m.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := tx.Exec(ctx, query, id, m.FSGroup, m.Role, m.UserID); err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to upsert group responsibility")
			}
		}
		return nil
	})
}
