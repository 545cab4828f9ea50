package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gl-reconciliation-backend/internal/apperrors"
	"gl-reconciliation-backend/internal/platform/database"
)

// ownerColumns whitelists the per-stage owner columns so transition SQL is
// never built from caller input.
var ownerColumns = map[Role]string{
	RoleMaker:    "maker_id",
	RoleReviewer: "reviewer_id",
	RoleFC:       "fc_id",
	RoleCFO:      "cfo_id",
}

// LedgerLineRepository persists ledger lines. All workflow mutations go
// through ApplyTransition / RejectLine / RejectBatch; nothing else updates
// stage, status or owners.
type LedgerLineRepository struct {
	db *database.DB
}

// NewLedgerLineRepository creates a new LedgerLineRepository.
func NewLedgerLineRepository(db *database.DB) *LedgerLineRepository {
	return &LedgerLineRepository{db: db}
}

const lineColumns = `
	id, company_code, gl_account, gl_description, doc_no, posting_date,
	prev_amount::text, curr_amount::text, variance_pct::text, currency,
	cost_center, profit_center, line_text, reference,
	source, batch_id, status, current_stage,
	maker_id, reviewer_id, fc_id, cfo_id,
	created_at, updated_at`

// Create inserts a new ledger line.
func (r *LedgerLineRepository) Create(ctx context.Context, line *LedgerLine) error {
	query := `
		INSERT INTO gl_lines
		    (id, company_code, gl_account, gl_description, doc_no, posting_date,
		     prev_amount, curr_amount, variance_pct, currency,
		     cost_center, profit_center, line_text, reference,
		     source, batch_id, status, current_stage,
		     maker_id, reviewer_id, fc_id, cfo_id)
		VALUES ($1, $2, $3, $4, $5, $6,
		        $7::numeric, $8::numeric, $9::numeric, $10,
		        $11, $12, $13, $14,
		        $15, $16, $17, $18,
		        $19, $20, $21, $22)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		line.ID,
		line.CompanyCode,
		line.GLAccount,
		line.GLDescription,
		line.DocNo,
		line.PostingDate,
		line.PrevAmount.String(),
		line.CurrAmount.String(),
		line.VariancePct.String(),
		line.Currency,
		line.CostCenter,
		line.ProfitCenter,
		line.LineText,
		line.Reference,
		line.Source,
		line.BatchID,
		line.Status,
		line.CurrentStage,
		line.MakerID,
		line.ReviewerID,
		line.FCID,
		line.CFOID,
	).Scan(&line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create ledger line")
	}
	return nil
}

// GetByID retrieves a line by its primary key.
func (r *LedgerLineRepository) GetByID(ctx context.Context, id string) (*LedgerLine, error) {
	query := `SELECT` + lineColumns + ` FROM gl_lines WHERE id = $1`

	line, err := scanLine(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperrors.NotFound("ledger line", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get ledger line")
	}
	return line, nil
}

// ApplyTransition performs the compare-and-swap stage/status/owner update.
// Zero rows affected means another writer moved the line first (conflict) or
// the line does not exist (not found); a follow-up read tells them apart.
func (r *LedgerLineRepository) ApplyTransition(ctx context.Context, t StageTransition) error {
	actorCol, ok := ownerColumns[t.ActorRole]
	if !ok {
		return apperrors.InvalidInput("role", string(t.ActorRole))
	}

	query := fmt.Sprintf(`
		UPDATE gl_lines
		SET status = $1, current_stage = $2, updated_at = NOW()
		WHERE id = $3 AND current_stage = $4 AND status = $5 AND %s = $6
	`, actorCol)
	args := []any{t.ToStatus, t.ToStage, t.LineID, t.FromStage, t.FromStatus, t.ActorID}

	if t.NextOwnerRole != nil {
		nextCol, ok := ownerColumns[*t.NextOwnerRole]
		if !ok {
			return apperrors.InvalidInput("next owner role", string(*t.NextOwnerRole))
		}
		query = fmt.Sprintf(`
			UPDATE gl_lines
			SET status = $1, current_stage = $2, %s = $3, updated_at = NOW()
			WHERE id = $4 AND current_stage = $5 AND status = $6 AND %s = $7
		`, nextCol, actorCol)
		args = []any{t.ToStatus, t.ToStage, t.NextOwnerID, t.LineID, t.FromStage, t.FromStatus, t.ActorID}
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to apply transition")
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, t.LineID); err != nil {
			return err
		}
		return apperrors.Conflict("line was modified by another actor; re-fetch and retry")
	}
	return nil
}

// RejectLine terminally rejects one line and records the rejection, in a
// single transaction. fromStatus is the status observed by the caller; a
// mismatch at update time is a conflict.
func (r *LedgerLineRepository) RejectLine(ctx context.Context, lineID string, fromStatus Status, rec *RejectionRecord) error {
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE gl_lines
			SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3
		`, StatusRejected, lineID, fromStatus)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to reject line")
		}
		if tag.RowsAffected() == 0 {
			return apperrors.Conflict("line was modified by another actor; re-fetch and retry")
		}

		rec.ID = uuid.NewString()
		rec.LineID = lineID
		return insertRejection(ctx, tx, rec)
	})
	return err
}

// RejectBatch terminally rejects every non-terminal line in a batch and
// records one rejection per affected line. Approved and already-rejected
// lines are left untouched. Returns the rejected lines so callers can emit
// per-line events.
func (r *LedgerLineRepository) RejectBatch(ctx context.Context, batchID, reason, rejectedBy string) ([]*LedgerLine, error) {
	var lines []*LedgerLine
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE gl_lines
			SET status = $1, updated_at = NOW()
			WHERE batch_id = $2 AND status NOT IN ($3, $4)
			RETURNING `+lineColumns+`
		`, StatusRejected, batchID, StatusApproved, StatusRejected)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to reject batch lines")
		}
		lines, err = scanLines(rows)
		rows.Close()
		if err != nil {
			return err
		}

		for _, line := range lines {
			rec := &RejectionRecord{
				ID:         uuid.NewString(),
				LineID:     line.ID,
				BatchID:    batchID,
				Reason:     reason,
				RejectedBy: rejectedBy,
			}
			if err := insertRejection(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// ListByBatch returns all lines in a batch, oldest-first.
func (r *LedgerLineRepository) ListByBatch(ctx context.Context, batchID string) ([]*LedgerLine, error) {
	query := `SELECT` + lineColumns + ` FROM gl_lines WHERE batch_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, batchID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list batch lines")
	}
	defer rows.Close()

	return scanLines(rows)
}

// ListPendingForOwner returns the lines awaiting action from userID in the
// given role, highest variance first. minVariance, when set, filters the way
// the fc/cfo dashboards do.
func (r *LedgerLineRepository) ListPendingForOwner(ctx context.Context, role Role, userID string, minVariance *decimal.Decimal) ([]*LedgerLine, error) {
	ownerCol, ok := ownerColumns[role]
	if !ok {
		return nil, apperrors.InvalidInput("role", string(role))
	}

	query := fmt.Sprintf(`
		SELECT`+lineColumns+`
		FROM gl_lines
		WHERE current_stage = $1 AND status NOT IN ($2, $3) AND %s = $4
	`, ownerCol)
	args := []any{Stage(role), StatusApproved, StatusRejected, userID}

	if minVariance != nil {
		query += ` AND variance_pct >= $5::numeric`
		args = append(args, minVariance.String())
	}
	query += ` ORDER BY variance_pct DESC, created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list pending lines")
	}
	defer rows.Close()

	return scanLines(rows)
}

// BatchStats aggregates line count and current-amount sum per status for a
// batch.
func (r *LedgerLineRepository) BatchStats(ctx context.Context, batchID string) (*BatchStats, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(curr_amount), 0)::text
		FROM gl_lines
		WHERE batch_id = $1
		GROUP BY status
	`

	rows, err := r.db.Query(ctx, query, batchID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to aggregate batch stats")
	}
	defer rows.Close()

	stats := &BatchStats{ByStatus: map[Status]StatusStats{}}
	for rows.Next() {
		var (
			status Status
			count  int64
			sumStr string
		)
		if err := rows.Scan(&status, &count, &sumStr); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan batch stats")
		}
		sum, err := decimal.NewFromString(sumStr)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "invalid amount sum")
		}
		stats.ByStatus[status] = StatusStats{Count: count, Sum: sum}
		stats.Total += count
		stats.TotalAmount = stats.TotalAmount.Add(sum)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to aggregate batch stats")
	}
	return stats, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type lineScanner interface {
	Scan(dest ...any) error
}

func scanLine(sc lineScanner) (*LedgerLine, error) {
	line := &LedgerLine{}
	var prevStr, currStr, varStr string

	err := sc.Scan(
		&line.ID,
		&line.CompanyCode,
		&line.GLAccount,
		&line.GLDescription,
		&line.DocNo,
		&line.PostingDate,
		&prevStr,
		&currStr,
		&varStr,
		&line.Currency,
		&line.CostCenter,
		&line.ProfitCenter,
		&line.LineText,
		&line.Reference,
		&line.Source,
		&line.BatchID,
		&line.Status,
		&line.CurrentStage,
		&line.MakerID,
		&line.ReviewerID,
		&line.FCID,
		&line.CFOID,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if line.PrevAmount, err = decimal.NewFromString(prevStr); err != nil {
		return nil, fmt.Errorf("invalid prev_amount: %w", err)
	}
	if line.CurrAmount, err = decimal.NewFromString(currStr); err != nil {
		return nil, fmt.Errorf("invalid curr_amount: %w", err)
	}
	if line.VariancePct, err = decimal.NewFromString(varStr); err != nil {
		return nil, fmt.Errorf("invalid variance_pct: %w", err)
	}
	return line, nil
}

func scanLines(rows pgx.Rows) ([]*LedgerLine, error) {
	var lines []*LedgerLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan ledger line")
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read ledger lines")
	}
	return lines, nil
}

func insertRejection(ctx context.Context, tx pgx.Tx, rec *RejectionRecord) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO gl_rejections (id, line_id, batch_id, reason, rejected_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, rec.ID, rec.LineID, rec.BatchID, rec.Reason, rec.RejectedBy).Scan(&rec.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to record rejection")
	}
	return nil
}
