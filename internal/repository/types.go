package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── Domain types for the GL sign-off workflow ────────────────────────────────

// Role is the capacity a user acts in. Roles are also the stage names for the
// four review stages.
type Role string

const (
	RoleMaker    Role = "maker"
	RoleReviewer Role = "reviewer"
	RoleFC       Role = "fc"
	RoleCFO      Role = "cfo"
)

// Valid reports whether r is one of the four workflow roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMaker, RoleReviewer, RoleFC, RoleCFO:
		return true
	}
	return false
}

// Stage is the position of a line in the workflow.
type Stage string

const (
	StageMaker    Stage = "maker"
	StageReviewer Stage = "reviewer"
	StageFC       Stage = "fc"
	StageCFO      Stage = "cfo"
	StageApproved Stage = "approved"
)

// Status is the finer-grained workflow state: "awaiting_X" means stage X must
// act (initial state, or bounced back by disapproval), "submitted_to_X" means
// the previous stage advanced the line to X. approved and rejected are
// terminal.
type Status string

const (
	StatusAwaitingMaker       Status = "awaiting_maker"
	StatusSubmittedToReviewer Status = "submitted_to_reviewer"
	StatusAwaitingReviewer    Status = "awaiting_reviewer"
	StatusSubmittedToFC       Status = "submitted_to_fc"
	StatusAwaitingFC          Status = "awaiting_fc"
	StatusSubmittedToCFO      Status = "submitted_to_cfo"
	StatusAwaitingCFO         Status = "awaiting_cfo"
	StatusApproved            Status = "approved"
	StatusRejected            Status = "rejected"
)

// Terminal reports whether the status is final and immutable.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// StageOf returns the stage a status belongs to. StatusRejected carries no
// stage of its own (the line keeps the stage it was rejected from), so the
// second return is false for it.
func (s Status) StageOf() (Stage, bool) {
	switch s {
	case StatusAwaitingMaker:
		return StageMaker, true
	case StatusSubmittedToReviewer, StatusAwaitingReviewer:
		return StageReviewer, true
	case StatusSubmittedToFC, StatusAwaitingFC:
		return StageFC, true
	case StatusSubmittedToCFO, StatusAwaitingCFO:
		return StageCFO, true
	case StatusApproved:
		return StageApproved, true
	}
	return "", false
}

// CommentKind distinguishes ordinary remarks from the tagged entry a
// disapproval injects into the chain.
type CommentKind string

const (
	CommentKindComment     CommentKind = "comment"
	CommentKindDisapproval CommentKind = "disapproval"
)

// LedgerLine is one reconciliation item for one (company, account, batch).
type LedgerLine struct {
	ID            string          `json:"id"`
	CompanyCode   string          `json:"company_code"`
	GLAccount     string          `json:"gl_account"`
	GLDescription string          `json:"gl_description,omitempty"`
	DocNo         string          `json:"doc_no,omitempty"`
	PostingDate   string          `json:"posting_date,omitempty"`
	PrevAmount    decimal.Decimal `json:"prev_amount"`
	CurrAmount    decimal.Decimal `json:"curr_amount"`
	VariancePct   decimal.Decimal `json:"variance_pct"` // derived at ingestion, never mutated directly
	Currency      string          `json:"currency"`
	CostCenter    string          `json:"cost_center,omitempty"`
	ProfitCenter  string          `json:"profit_center,omitempty"`
	LineText      string          `json:"text,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	Source        string          `json:"source"` // SAP | NON_SAP
	BatchID       string          `json:"batch_id"`
	Status        Status          `json:"status"`
	CurrentStage  Stage           `json:"current_stage"`
	MakerID       *string         `json:"maker_id"`
	ReviewerID    *string         `json:"reviewer_id"`
	FCID          *string         `json:"fc_id"`
	CFOID         *string         `json:"cfo_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OwnerForStage returns the user assigned to act at the given stage.
func (l *LedgerLine) OwnerForStage(stage Stage) *string {
	switch stage {
	case StageMaker:
		return l.MakerID
	case StageReviewer:
		return l.ReviewerID
	case StageFC:
		return l.FCID
	case StageCFO:
		return l.CFOID
	}
	return nil
}

// CommentEntry is one role-tagged remark in a line's append-only chain.
type CommentEntry struct {
	ID          string      `json:"id"`
	LineID      string      `json:"line_id"`
	Comment     string      `json:"comment"`
	Role        Role        `json:"role"`
	CommentedBy string      `json:"commented_by"`
	Kind        CommentKind `json:"kind"`
	CommentedAt time.Time   `json:"commented_at"`
}

// DisapprovalRecord captures one backward transition. Immutable.
type DisapprovalRecord struct {
	ID            string    `json:"id"`
	LineID        string    `json:"line_id"`
	DisapprovedBy string    `json:"disapproved_by"`
	FromRole      Role      `json:"from_role"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// RejectionRecord captures one terminal removal. Immutable.
type RejectionRecord struct {
	ID         string    `json:"id"`
	LineID     string    `json:"line_id"`
	BatchID    string    `json:"batch_id"`
	Reason     string    `json:"reason"`
	RejectedBy string    `json:"rejected_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResponsibilityMapping assigns a user to a role for a (company, account).
type ResponsibilityMapping struct {
	ID          string `json:"id,omitempty"`
	CompanyCode string `json:"company_code"`
	GLAccount   string `json:"gl_account"`
	Role        Role   `json:"role"`
	UserID      string `json:"user_id"`
}

// GroupResponsibilityMapping is the FS-group fallback assignment.
type GroupResponsibilityMapping struct {
	ID      string `json:"id,omitempty"`
	FSGroup string `json:"fs_group"`
	Role    Role   `json:"role"`
	UserID  string `json:"user_id"`
}

// IngestBatch groups lines ingested together and carries the batch's
// comment-required variance threshold.
type IngestBatch struct {
	ID                string          `json:"id"`
	Source            string          `json:"source"`
	FileName          string          `json:"file_name,omitempty"`
	VarianceThreshold decimal.Decimal `json:"variance_threshold"`
	CreatedAt         time.Time       `json:"created_at"`
}

// StageTransition is one atomic compare-and-swap on a line's workflow fields.
// The WHERE clause matches FromStage, FromStatus and the acting owner column,
// so a second writer racing on the same line fails the swap.
type StageTransition struct {
	LineID     string
	FromStage  Stage
	FromStatus Status
	ActorRole  Role   // owner column that must match ActorID
	ActorID    string
	ToStage    Stage
	ToStatus   Status
	// NextOwnerRole/NextOwnerID set the owner column for the receiving stage.
	// Nil for terminal and backward transitions.
	NextOwnerRole *Role
	NextOwnerID   *string
}

// BatchStats aggregates a batch's lines per status.
type BatchStats struct {
	Total       int64           `json:"total"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	ByStatus map[Status]StatusStats `json:"by_status"`
}

// StatusStats is the count and current-amount sum for one status.
type StatusStats struct {
	Count int64           `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
}
