package repository

import (
	"context"

	"gl-reconciliation-backend/internal/apperrors"
	"gl-reconciliation-backend/internal/platform/database"
)

// CommentRepository appends and reads the immutable comment chain for a line.
// Append is the only mutation exposed.
type CommentRepository struct {
	db *database.DB
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(db *database.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Append inserts one comment entry.
func (r *CommentRepository) Append(ctx context.Context, entry *CommentEntry) error {
	query := `
		INSERT INTO gl_comments (id, line_id, comment, role, commented_by, kind)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING commented_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.ID,
		entry.LineID,
		entry.Comment,
		entry.Role,
		entry.CommentedBy,
		entry.Kind,
	).Scan(&entry.CommentedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to append comment")
	}
	return nil
}

// ListByLine returns the full chain for a line, oldest-first.
func (r *CommentRepository) ListByLine(ctx context.Context, lineID string) ([]*CommentEntry, error) {
	query := `
		SELECT id, line_id, comment, role, commented_by, kind, commented_at
		FROM gl_comments
		WHERE line_id = $1
		ORDER BY commented_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, lineID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list comments")
	}
	defer rows.Close()

	var entries []*CommentEntry
	for rows.Next() {
		entry := &CommentEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.LineID,
			&entry.Comment,
			&entry.Role,
			&entry.CommentedBy,
			&entry.Kind,
			&entry.CommentedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan comment")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read comments")
	}
	return entries, nil
}

// ExistsForRole reports whether the line already has a free-text comment by
// the given role. Used to enforce the high-variance comment requirement
// before Advance; injected disapproval entries do not qualify.
func (r *CommentRepository) ExistsForRole(ctx context.Context, lineID string, role Role) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM gl_comments
			WHERE line_id = $1 AND role = $2 AND kind = $3
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, lineID, role, CommentKindComment).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to check comments")
	}
	return exists, nil
}
