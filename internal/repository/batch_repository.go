package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"gl-reconciliation-backend/internal/apperrors"
	"gl-reconciliation-backend/internal/platform/database"
)

// BatchRepository persists ingest batches and their per-batch variance
// threshold.
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a batch. Re-ingesting an existing batch id is an error.
func (r *BatchRepository) Create(ctx context.Context, batch *IngestBatch) error {
	query := `
		INSERT INTO gl_batches (id, source, file_name, variance_threshold)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		batch.ID,
		batch.Source,
		batch.FileName,
		batch.VarianceThreshold.String(),
	).Scan(&batch.CreatedAt)
	if isUniqueViolation(err) {
		return apperrors.Newf(apperrors.ErrCodeConflict, "batch already ingested: %s", batch.ID)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create batch")
	}
	return nil
}

// isUniqueViolation reports whether err is a postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetByID retrieves a batch by id.
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*IngestBatch, error) {
	query := `
		SELECT id, source, file_name, variance_threshold::text, created_at
		FROM gl_batches
		WHERE id = $1
	`

	batch := &IngestBatch{}
	var thresholdStr string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&batch.ID,
		&batch.Source,
		&batch.FileName,
		&thresholdStr,
		&batch.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("batch", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get batch")
	}

	if batch.VarianceThreshold, err = decimal.NewFromString(thresholdStr); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "invalid variance threshold")
	}
	return batch, nil
}
