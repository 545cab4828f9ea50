package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gl-reconciliation-backend/internal/apperrors"
	"gl-reconciliation-backend/internal/repository"
)

// WorkflowService is the approval state machine. It is the only code path
// that moves a ledger line between stages; every dashboard and caller goes
// through Advance / Disapprove / Reject here. Actor identity is always an
// explicit parameter, never ambient.
type WorkflowService struct {
	lines     LedgerLineStore
	comments  CommentStore
	decisions DecisionStore
	batches   BatchStore
	publisher EventPublisher
	log       zerolog.Logger

	// defaultThreshold applies when a line's batch cannot be loaded.
	defaultThreshold decimal.Decimal
}

// NewWorkflowService creates a new WorkflowService. publisher may be nil when
// notifications are disabled.
func NewWorkflowService(
	lines LedgerLineStore,
	comments CommentStore,
	decisions DecisionStore,
	batches BatchStore,
	publisher EventPublisher,
	defaultThreshold decimal.Decimal,
	log zerolog.Logger,
) *WorkflowService {
	return &WorkflowService{
		lines:            lines,
		comments:         comments,
		decisions:        decisions,
		batches:          batches,
		publisher:        publisher,
		defaultThreshold: defaultThreshold,
		log:              log,
	}
}

// ── Advance ───────────────────────────────────────────────────────────────────

// Advance moves a line one stage forward. nextOwnerID is mandatory for every
// non-terminal transition and assigns the receiving stage's owner; the
// cfo → approved transition ignores it.
func (s *WorkflowService) Advance(ctx context.Context, lineID, actorID string, actorRole repository.Role, nextOwnerID *string) (*repository.LedgerLine, error) {
	line, err := s.loadActionableLine(ctx, lineID, actorID, actorRole)
	if err != nil {
		return nil, err
	}

	rule := advanceRules[actorRole]
	if rule.NextOwnerRole != nil && (nextOwnerID == nil || *nextOwnerID == "") {
		return nil, apperrors.InvalidInput("next_owner_id",
			"a next-stage owner is required for every non-terminal advance")
	}

	// High-variance lines may not advance without a justification comment
	// from the acting stage.
	threshold := s.thresholdFor(ctx, line.BatchID)
	if line.VariancePct.GreaterThanOrEqual(threshold) {
		hasComment, err := s.comments.ExistsForRole(ctx, lineID, actorRole)
		if err != nil {
			return nil, err
		}
		if !hasComment {
			return nil, apperrors.Newf(apperrors.ErrCodeValidation,
				"variance %s%% is at or above the %s%% threshold; a %s comment is required before advancing",
				line.VariancePct.StringFixed(2), threshold.StringFixed(2), actorRole)
		}
	}

	t := repository.StageTransition{
		LineID:     lineID,
		FromStage:  line.CurrentStage,
		FromStatus: line.Status,
		ActorRole:  actorRole,
		ActorID:    actorID,
		ToStage:    rule.ToStage,
		ToStatus:   rule.ToStatus,
	}
	if rule.NextOwnerRole != nil {
		t.NextOwnerRole = rule.NextOwnerRole
		t.NextOwnerID = nextOwnerID
	}
	if err := s.lines.ApplyTransition(ctx, t); err != nil {
		return nil, err
	}

	line.CurrentStage = rule.ToStage
	line.Status = rule.ToStatus
	recipient := actorRole
	if rule.NextOwnerRole != nil {
		recipient = *rule.NextOwnerRole
		s.setOwner(line, *rule.NextOwnerRole, nextOwnerID)
	} else {
		// Final approval goes back to the maker, who owns the closed item.
		recipient = repository.RoleMaker
	}

	s.log.Info().
		Str("line_id", lineID).
		Str("actor_id", actorID).
		Str("role", string(actorRole)).
		Str("to_status", string(rule.ToStatus)).
		Msg("Line advanced")

	s.publish(ctx, EventLineAdvanced, line, actorID, recipient, map[string]any{
		"to_stage":  rule.ToStage,
		"to_status": rule.ToStatus,
	})
	return line, nil
}

// ── Disapprove ────────────────────────────────────────────────────────────────

// Disapprove bounces a line exactly one stage back with a mandatory reason.
// It records a DisapprovalRecord and injects a tagged entry into the comment
// chain. Owners of stages being skipped over stay assigned.
func (s *WorkflowService) Disapprove(ctx context.Context, lineID, actorID string, actorRole repository.Role, reason string) (*repository.LedgerLine, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.InvalidInput("reason", "a disapproval reason is required")
	}
	rule, ok := disapproveRules[actorRole]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation,
			"role %s cannot disapprove: there is no earlier stage", actorRole)
	}

	line, err := s.loadActionableLine(ctx, lineID, actorID, actorRole)
	if err != nil {
		return nil, err
	}

	t := repository.StageTransition{
		LineID:     lineID,
		FromStage:  line.CurrentStage,
		FromStatus: line.Status,
		ActorRole:  actorRole,
		ActorID:    actorID,
		ToStage:    rule.ToStage,
		ToStatus:   rule.ToStatus,
	}
	if err := s.lines.ApplyTransition(ctx, t); err != nil {
		return nil, err
	}

	rec := &repository.DisapprovalRecord{
		ID:            uuid.NewString(),
		LineID:        lineID,
		DisapprovedBy: actorID,
		FromRole:      actorRole,
		Reason:        reason,
	}
	if err := s.decisions.RecordDisapproval(ctx, rec); err != nil {
		return nil, err
	}
	entry := &repository.CommentEntry{
		ID:          uuid.NewString(),
		LineID:      lineID,
		Comment:     reason,
		Role:        actorRole,
		CommentedBy: actorID,
		Kind:        repository.CommentKindDisapproval,
	}
	if err := s.comments.Append(ctx, entry); err != nil {
		return nil, err
	}

	line.CurrentStage = rule.ToStage
	line.Status = rule.ToStatus

	s.log.Info().
		Str("line_id", lineID).
		Str("actor_id", actorID).
		Str("role", string(actorRole)).
		Str("to_status", string(rule.ToStatus)).
		Msg("Line disapproved to previous stage")

	s.publish(ctx, EventLineDisapproved, line, actorID, repository.Role(rule.ToStage), map[string]any{
		"reason":    reason,
		"to_stage":  rule.ToStage,
		"to_status": rule.ToStatus,
	})
	return line, nil
}

// ── Reject ────────────────────────────────────────────────────────────────────

// RejectLine terminally removes one line from the workflow. Approved lines
// are immutable and cannot be rejected.
func (s *WorkflowService) RejectLine(ctx context.Context, lineID, actorID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return apperrors.InvalidInput("reason", "a rejection reason is required")
	}

	line, err := s.lines.GetByID(ctx, lineID)
	if err != nil {
		return err
	}
	if line.Status.Terminal() {
		return apperrors.Newf(apperrors.ErrCodeValidation,
			"line is %s and cannot be rejected", line.Status)
	}

	rec := &repository.RejectionRecord{
		BatchID:    line.BatchID,
		Reason:     reason,
		RejectedBy: actorID,
	}
	if err := s.lines.RejectLine(ctx, lineID, line.Status, rec); err != nil {
		return err
	}

	line.Status = repository.StatusRejected

	s.log.Info().
		Str("line_id", lineID).
		Str("actor_id", actorID).
		Msg("Line rejected")

	s.publish(ctx, EventLineRejected, line, actorID, repository.Role(line.CurrentStage), map[string]any{
		"reason": reason,
	})
	return nil
}

// RejectBatch terminally rejects every in-flight line of a batch. Lines
// already approved or rejected are skipped. Returns how many lines were
// rejected.
func (s *WorkflowService) RejectBatch(ctx context.Context, batchID, actorID, reason string) (int, error) {
	if strings.TrimSpace(reason) == "" {
		return 0, apperrors.InvalidInput("reason", "a rejection reason is required")
	}
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		return 0, err
	}

	rejected, err := s.lines.RejectBatch(ctx, batchID, reason, actorID)
	if err != nil {
		return 0, err
	}

	for _, line := range rejected {
		s.publish(ctx, EventLineRejected, line, actorID, repository.Role(line.CurrentStage), map[string]any{
			"reason": reason,
			"scope":  "batch",
		})
	}

	s.log.Info().
		Str("batch_id", batchID).
		Str("actor_id", actorID).
		Int("lines_rejected", len(rejected)).
		Msg("Batch rejected")
	return len(rejected), nil
}

// ── Comments ──────────────────────────────────────────────────────────────────

// AddComment appends a free-text remark to a line's chain.
func (s *WorkflowService) AddComment(ctx context.Context, lineID, text, userID string, role repository.Role) (*repository.CommentEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.InvalidInput("comment", "comment text is required")
	}
	if !role.Valid() {
		return nil, apperrors.InvalidInput("role", string(role))
	}
	if _, err := s.lines.GetByID(ctx, lineID); err != nil {
		return nil, err
	}

	entry := &repository.CommentEntry{
		ID:          uuid.NewString(),
		LineID:      lineID,
		Comment:     text,
		Role:        role,
		CommentedBy: userID,
		Kind:        repository.CommentKindComment,
	}
	if err := s.comments.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListComments returns a line's full comment chain, oldest-first.
func (s *WorkflowService) ListComments(ctx context.Context, lineID string) ([]*repository.CommentEntry, error) {
	if _, err := s.lines.GetByID(ctx, lineID); err != nil {
		return nil, err
	}
	return s.comments.ListByLine(ctx, lineID)
}

// ── Queries ───────────────────────────────────────────────────────────────────

// GetLine returns one line.
func (s *WorkflowService) GetLine(ctx context.Context, lineID string) (*repository.LedgerLine, error) {
	return s.lines.GetByID(ctx, lineID)
}

// ListPending returns the lines awaiting action from a user in a role.
func (s *WorkflowService) ListPending(ctx context.Context, role repository.Role, userID string, minVariance *decimal.Decimal) ([]*repository.LedgerLine, error) {
	if !role.Valid() {
		return nil, apperrors.InvalidInput("role", string(role))
	}
	return s.lines.ListPendingForOwner(ctx, role, userID, minVariance)
}

// ListBatchLines returns all lines in a batch.
func (s *WorkflowService) ListBatchLines(ctx context.Context, batchID string) ([]*repository.LedgerLine, error) {
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.lines.ListByBatch(ctx, batchID)
}

// BatchSummary returns per-status counts and sums for a batch.
func (s *WorkflowService) BatchSummary(ctx context.Context, batchID string) (*repository.BatchStats, error) {
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.lines.BatchStats(ctx, batchID)
}

// ListDisapprovals returns a line's disapproval history.
func (s *WorkflowService) ListDisapprovals(ctx context.Context, lineID string) ([]*repository.DisapprovalRecord, error) {
	if _, err := s.lines.GetByID(ctx, lineID); err != nil {
		return nil, err
	}
	return s.decisions.ListDisapprovalsByLine(ctx, lineID)
}

// ListBatchRejections returns the rejection records for a batch.
func (s *WorkflowService) ListBatchRejections(ctx context.Context, batchID string) ([]*repository.RejectionRecord, error) {
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.decisions.ListRejectionsByBatch(ctx, batchID)
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// loadActionableLine fetches the line and re-validates the stage/role match
// and stage ownership, regardless of what the caller already checked. The
// checks here are advisory; the authoritative check is the compare-and-swap
// WHERE clause in ApplyTransition.
func (s *WorkflowService) loadActionableLine(ctx context.Context, lineID, actorID string, actorRole repository.Role) (*repository.LedgerLine, error) {
	if !actorRole.Valid() {
		return nil, apperrors.InvalidInput("role", string(actorRole))
	}
	if actorID == "" {
		return nil, apperrors.InvalidInput("user_id", "acting user is required")
	}

	line, err := s.lines.GetByID(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line.Status.Terminal() {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation,
			"line is %s and immutable", line.Status)
	}
	if line.CurrentStage != stageForRole(actorRole) {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation,
			"line is at stage %s, not %s", line.CurrentStage, actorRole)
	}

	owner := line.OwnerForStage(line.CurrentStage)
	if owner == nil {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation,
			"no owner is assigned for stage %s; assign one before acting", line.CurrentStage)
	}
	if *owner != actorID {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized,
			"user is not the assigned owner for this stage")
	}
	return line, nil
}

// thresholdFor returns the batch's variance threshold, falling back to the
// service default when the batch cannot be loaded. A missing batch is a soft
// failure here: it must not block a transition.
func (s *WorkflowService) thresholdFor(ctx context.Context, batchID string) decimal.Decimal {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		s.log.Warn().Err(err).
			Str("batch_id", batchID).
			Msg("Could not load batch threshold; using default")
		return s.defaultThreshold
	}
	return batch.VarianceThreshold
}

func (s *WorkflowService) setOwner(line *repository.LedgerLine, role repository.Role, ownerID *string) {
	switch role {
	case repository.RoleMaker:
		line.MakerID = ownerID
	case repository.RoleReviewer:
		line.ReviewerID = ownerID
	case repository.RoleFC:
		line.FCID = ownerID
	case repository.RoleCFO:
		line.CFOID = ownerID
	}
}

// publish emits an event when a publisher is configured. Never fails the
// calling transition.
func (s *WorkflowService) publish(ctx context.Context, eventType string, line *repository.LedgerLine, actorID string, recipient repository.Role, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishLineEvent(ctx, eventType, line, actorID, recipient, payload)
}
