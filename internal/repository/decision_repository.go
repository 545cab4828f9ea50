package repository

import (
	"context"

	"gl-reconciliation-backend/internal/apperrors"
	"gl-reconciliation-backend/internal/platform/database"
)

// DecisionRepository records disapprovals and reads decision history. Rows
// are insert-only; rejection inserts happen inside the line repository's
// transactions so the terminal status and its record commit together.
type DecisionRepository struct {
	db *database.DB
}

// NewDecisionRepository creates a new DecisionRepository.
func NewDecisionRepository(db *database.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// RecordDisapproval inserts one disapproval record.
func (r *DecisionRepository) RecordDisapproval(ctx context.Context, rec *DisapprovalRecord) error {
	query := `
		INSERT INTO gl_disapprovals (id, line_id, disapproved_by, from_role, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		rec.ID,
		rec.LineID,
		rec.DisapprovedBy,
		rec.FromRole,
		rec.Reason,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to record disapproval")
	}
	return nil
}

// ListDisapprovalsByLine returns a line's disapproval history, oldest-first.
func (r *DecisionRepository) ListDisapprovalsByLine(ctx context.Context, lineID string) ([]*DisapprovalRecord, error) {
	query := `
		SELECT id, line_id, disapproved_by, from_role, reason, created_at
		FROM gl_disapprovals
		WHERE line_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, lineID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list disapprovals")
	}
	defer rows.Close()

	var recs []*DisapprovalRecord
	for rows.Next() {
		rec := &DisapprovalRecord{}
		err := rows.Scan(&rec.ID, &rec.LineID, &rec.DisapprovedBy, &rec.FromRole, &rec.Reason, &rec.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan disapproval")
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read disapprovals")
	}
	return recs, nil
}

// ListRejectionsByBatch returns all rejection records for a batch.
func (r *DecisionRepository) ListRejectionsByBatch(ctx context.Context, batchID string) ([]*RejectionRecord, error) {
	query := `
		SELECT id, line_id, batch_id, reason, rejected_by, created_at
		FROM gl_rejections
		WHERE batch_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, batchID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list rejections")
	}
	defer rows.Close()

	var recs []*RejectionRecord
	for rows.Next() {
		rec := &RejectionRecord{}
		err := rows.Scan(&rec.ID, &rec.LineID, &rec.BatchID, &rec.Reason, &rec.RejectedBy, &rec.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan rejection")
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read rejections")
	}
	return recs, nil
}
