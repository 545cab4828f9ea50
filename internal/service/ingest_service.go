package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gl-reconciliation-backend/internal/apperrors"
	"gl-reconciliation-backend/internal/repository"
)

// Line sources.
const (
	SourceSAP    = "SAP"
	SourceNonSAP = "NON_SAP"
)

// IngestRow is one trial balance row handed to ingestion.
type IngestRow struct {
	CompanyCode   string          `json:"company_code"`
	GLAccount     string          `json:"gl_account"`
	GLDescription string          `json:"gl_description"`
	DocNo         string          `json:"doc_no"`
	PostingDate   string          `json:"posting_date"`
	PrevAmount    decimal.Decimal `json:"prev_amount"`
	CurrAmount    decimal.Decimal `json:"curr_amount"`
	Currency      string          `json:"currency"`
	CostCenter    string          `json:"cost_center"`
	ProfitCenter  string          `json:"profit_center"`
	LineText      string          `json:"text"`
	Reference     string          `json:"reference"`
	FSGroup       string          `json:"fs_group"`
}

// IngestWarning is a soft, per-row problem (typically a responsibility
// resolution gap). The row is still ingested.
type IngestWarning struct {
	Row       int    `json:"row"`
	GLAccount string `json:"gl_account"`
	Message   string `json:"message"`
}

// IngestRowError is a row that could not be ingested. Other rows continue.
type IngestRowError struct {
	Row       int    `json:"row"`
	GLAccount string `json:"gl_account"`
	Message   string `json:"message"`
}

// IngestResult reports everything a caller needs to surface: created lines,
// soft warnings and hard per-row failures.
type IngestResult struct {
	BatchID   string                   `json:"batch_id"`
	Lines     []*repository.LedgerLine `json:"lines"`
	Warnings  []IngestWarning          `json:"warnings"`
	RowErrors []IngestRowError         `json:"row_errors"`
}

// IngestService creates ledger lines from trial balance rows, resolving the
// four stage owners and computing the stored variance for each.
type IngestService struct {
	lines     LedgerLineStore
	batches   BatchStore
	resolver  *ResponsibilityResolver
	store     ResponsibilityStore
	publisher EventPublisher
	log       zerolog.Logger

	defaultThreshold decimal.Decimal
}

// NewIngestService creates a new IngestService. publisher may be nil.
func NewIngestService(
	lines LedgerLineStore,
	batches BatchStore,
	resolver *ResponsibilityResolver,
	store ResponsibilityStore,
	publisher EventPublisher,
	defaultThreshold decimal.Decimal,
	log zerolog.Logger,
) *IngestService {
	return &IngestService{
		lines:            lines,
		batches:          batches,
		resolver:         resolver,
		store:            store,
		publisher:        publisher,
		defaultThreshold: defaultThreshold,
		log:              log,
	}
}

var ingestRoles = []repository.Role{
	repository.RoleMaker,
	repository.RoleReviewer,
	repository.RoleFC,
	repository.RoleCFO,
}

// IngestBatch inserts one ledger line per row at stage maker. Row failures
// are collected and reported, never silently swallowed, and never abort the
// rest of the batch. threshold overrides the default comment-required
// variance percentage for this batch.
func (s *IngestService) IngestBatch(ctx context.Context, rows []IngestRow, batchID, source, fileName string, threshold *decimal.Decimal) (*IngestResult, error) {
	if len(rows) == 0 {
		return nil, apperrors.InvalidInput("rows", "at least one row is required")
	}
	if batchID == "" {
		batchID = newBatchID()
	}
	if source == "" {
		source = SourceNonSAP
	}

	batchThreshold := s.defaultThreshold
	if threshold != nil {
		if threshold.IsNegative() {
			return nil, apperrors.InvalidInput("variance_threshold", "must not be negative")
		}
		batchThreshold = *threshold
	}

	batch := &repository.IngestBatch{
		ID:                batchID,
		Source:            source,
		FileName:          fileName,
		VarianceThreshold: batchThreshold,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	result := &IngestResult{BatchID: batchID}
	for i, row := range rows {
		line, warnings, err := s.ingestRow(ctx, row, batchID, source)
		if err != nil {
			result.RowErrors = append(result.RowErrors, IngestRowError{
				Row:       i,
				GLAccount: row.GLAccount,
				Message:   err.Error(),
			})
			continue
		}
		for _, w := range warnings {
			result.Warnings = append(result.Warnings, IngestWarning{
				Row:       i,
				GLAccount: row.GLAccount,
				Message:   w,
			})
		}
		result.Lines = append(result.Lines, line)

		s.publish(ctx, line)
	}

	s.log.Info().
		Str("batch_id", batchID).
		Str("source", source).
		Int("lines", len(result.Lines)).
		Int("warnings", len(result.Warnings)).
		Int("row_errors", len(result.RowErrors)).
		Msg("Batch ingested")
	return result, nil
}

// ingestRow resolves owners, computes variance and inserts one line.
// Returned warnings are resolution gaps; the corresponding owner stays nil
// pending manual assignment.
func (s *IngestService) ingestRow(ctx context.Context, row IngestRow, batchID, source string) (*repository.LedgerLine, []string, error) {
	if strings.TrimSpace(row.CompanyCode) == "" {
		return nil, nil, apperrors.InvalidInput("company_code", "required")
	}
	if strings.TrimSpace(row.GLAccount) == "" {
		return nil, nil, apperrors.InvalidInput("gl_account", "required")
	}

	currency := row.Currency
	if currency == "" {
		currency = "INR"
	}

	line := &repository.LedgerLine{
		ID:            uuid.NewString(),
		CompanyCode:   row.CompanyCode,
		GLAccount:     row.GLAccount,
		GLDescription: row.GLDescription,
		DocNo:         row.DocNo,
		PostingDate:   row.PostingDate,
		PrevAmount:    row.PrevAmount,
		CurrAmount:    row.CurrAmount,
		VariancePct:   VariancePct(row.PrevAmount, row.CurrAmount),
		Currency:      currency,
		CostCenter:    row.CostCenter,
		ProfitCenter:  row.ProfitCenter,
		LineText:      row.LineText,
		Reference:     row.Reference,
		Source:        source,
		BatchID:       batchID,
		Status:        repository.StatusAwaitingMaker,
		CurrentStage:  repository.StageMaker,
	}

	// Each role resolves independently; a gap is a warning, not a failure.
	var warnings []string
	for _, role := range ingestRoles {
		owner, err := s.resolver.Resolve(ctx, row.CompanyCode, row.GLAccount, row.FSGroup, role)
		if err != nil {
			return nil, nil, err
		}
		if owner == nil {
			warnings = append(warnings, fmt.Sprintf(
				"no %s responsibility mapping for %s/%s; owner left unassigned",
				role, row.CompanyCode, row.GLAccount))
			continue
		}
		switch role {
		case repository.RoleMaker:
			line.MakerID = owner
		case repository.RoleReviewer:
			line.ReviewerID = owner
		case repository.RoleFC:
			line.FCID = owner
		case repository.RoleCFO:
			line.CFOID = owner
		}
	}

	if err := s.lines.Create(ctx, line); err != nil {
		return nil, nil, err
	}
	return line, warnings, nil
}

// UpsertResponsibilities replaces line-level responsibility assignments.
func (s *IngestService) UpsertResponsibilities(ctx context.Context, mappings []repository.ResponsibilityMapping) error {
	if len(mappings) == 0 {
		return apperrors.InvalidInput("mappings", "at least one mapping is required")
	}
	for _, m := range mappings {
		if !m.Role.Valid() {
			return apperrors.InvalidInput("role", string(m.Role))
		}
		if m.CompanyCode == "" || m.GLAccount == "" || m.UserID == "" {
			return apperrors.InvalidInput("mapping", "company_code, gl_account and user_id are required")
		}
	}
	return s.store.UpsertMappings(ctx, mappings)
}

// UpsertGroupResponsibilities replaces FS-group fallback assignments.
func (s *IngestService) UpsertGroupResponsibilities(ctx context.Context, mappings []repository.GroupResponsibilityMapping) error {
	if len(mappings) == 0 {
		return apperrors.InvalidInput("mappings", "at least one mapping is required")
	}
	for _, m := range mappings {
		if !m.Role.Valid() {
			return apperrors.InvalidInput("role", string(m.Role))
		}
		if m.FSGroup == "" || m.UserID == "" {
			return apperrors.InvalidInput("mapping", "fs_group and user_id are required")
		}
	}
	return s.store.UpsertGroupMappings(ctx, mappings)
}

func (s *IngestService) publish(ctx context.Context, line *repository.LedgerLine) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishLineEvent(ctx, EventLineIngested, line, "system", repository.RoleMaker, map[string]any{
		"variance_pct": line.VariancePct,
	})
}

// newBatchID keeps the daily batch naming with a uniqueness suffix.
func newBatchID() string {
	return fmt.Sprintf("batch_%s_%s", time.Now().Format("20060102"), uuid.NewString()[:8])
}
