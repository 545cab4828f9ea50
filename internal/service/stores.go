package service

import (
	"context"

	"github.com/shopspring/decimal"

	"gl-reconciliation-backend/internal/repository"
)

// Store interfaces consumed by the services. The pgx repositories satisfy
// them in production; tests use in-memory fakes.

// LedgerLineStore owns ledger line rows and their workflow mutations.
type LedgerLineStore interface {
	Create(ctx context.Context, line *repository.LedgerLine) error
	GetByID(ctx context.Context, id string) (*repository.LedgerLine, error)
	ApplyTransition(ctx context.Context, t repository.StageTransition) error
	RejectLine(ctx context.Context, lineID string, fromStatus repository.Status, rec *repository.RejectionRecord) error
	RejectBatch(ctx context.Context, batchID, reason, rejectedBy string) ([]*repository.LedgerLine, error)
	ListByBatch(ctx context.Context, batchID string) ([]*repository.LedgerLine, error)
	ListPendingForOwner(ctx context.Context, role repository.Role, userID string, minVariance *decimal.Decimal) ([]*repository.LedgerLine, error)
	BatchStats(ctx context.Context, batchID string) (*repository.BatchStats, error)
}

// CommentStore is the append-only comment chain.
type CommentStore interface {
	Append(ctx context.Context, entry *repository.CommentEntry) error
	ListByLine(ctx context.Context, lineID string) ([]*repository.CommentEntry, error)
	ExistsForRole(ctx context.Context, lineID string, role repository.Role) (bool, error)
}

// DecisionStore records disapprovals and reads decision history.
type DecisionStore interface {
	RecordDisapproval(ctx context.Context, rec *repository.DisapprovalRecord) error
	ListDisapprovalsByLine(ctx context.Context, lineID string) ([]*repository.DisapprovalRecord, error)
	ListRejectionsByBatch(ctx context.Context, batchID string) ([]*repository.RejectionRecord, error)
}

// BatchStore persists ingest batches.
type BatchStore interface {
	Create(ctx context.Context, batch *repository.IngestBatch) error
	GetByID(ctx context.Context, id string) (*repository.IngestBatch, error)
}

// ResponsibilityStore is the responsibility reference data.
type ResponsibilityStore interface {
	FindOwner(ctx context.Context, companyCode, glAccount string, role repository.Role) (*string, error)
	FindGroupOwner(ctx context.Context, fsGroup string, role repository.Role) (*string, error)
	UpsertMappings(ctx context.Context, mappings []repository.ResponsibilityMapping) error
	UpsertGroupMappings(ctx context.Context, mappings []repository.GroupResponsibilityMapping) error
}

// EventPublisher notifies the outside world of workflow transitions.
// Implementations must be fire-and-forget: failures are logged, never
// returned, and never affect the transition that triggered them.
type EventPublisher interface {
	PublishLineEvent(ctx context.Context, eventType string, line *repository.LedgerLine, actorID string, recipientRole repository.Role, payload map[string]any)
}

// Published event types.
const (
	EventLineIngested    = "line_ingested"
	EventLineAdvanced    = "line_advanced"
	EventLineDisapproved = "line_disapproved"
	EventLineRejected    = "line_rejected"
)
