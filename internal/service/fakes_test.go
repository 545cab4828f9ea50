package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gl-reconciliation-backend/internal/apperrors"
	"gl-reconciliation-backend/internal/repository"
)

// In-memory store fakes. They mirror the persistence semantics that matter to
// the services: the compare-and-swap transition, append-only comments and the
// skip-terminal batch reject.

type fakeLineStore struct {
	mu    sync.Mutex
	lines map[string]*repository.LedgerLine
	order []string

	rejections []*repository.RejectionRecord
}

func newFakeLineStore() *fakeLineStore {
	return &fakeLineStore{lines: make(map[string]*repository.LedgerLine)}
}

func (f *fakeLineStore) Create(_ context.Context, line *repository.LedgerLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *line
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.lines[line.ID] = &cp
	f.order = append(f.order, line.ID)
	return nil
}

func (f *fakeLineStore) GetByID(_ context.Context, id string) (*repository.LedgerLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line, ok := f.lines[id]
	if !ok {
		return nil, apperrors.NotFound("ledger line", id)
	}
	cp := *line
	return &cp, nil
}

func (f *fakeLineStore) ApplyTransition(_ context.Context, t repository.StageTransition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	line, ok := f.lines[t.LineID]
	if !ok {
		return apperrors.NotFound("ledger line", t.LineID)
	}

	owner := line.OwnerForStage(repository.Stage(t.ActorRole))
	if line.CurrentStage != t.FromStage || line.Status != t.FromStatus ||
		owner == nil || *owner != t.ActorID {
		return apperrors.Conflict("line was modified concurrently; reload and retry")
	}

	line.CurrentStage = t.ToStage
	line.Status = t.ToStatus
	if t.NextOwnerRole != nil {
		switch *t.NextOwnerRole {
		case repository.RoleMaker:
			line.MakerID = t.NextOwnerID
		case repository.RoleReviewer:
			line.ReviewerID = t.NextOwnerID
		case repository.RoleFC:
			line.FCID = t.NextOwnerID
		case repository.RoleCFO:
			line.CFOID = t.NextOwnerID
		}
	}
	line.UpdatedAt = time.Now()
	return nil
}

func (f *fakeLineStore) RejectLine(_ context.Context, lineID string, fromStatus repository.Status, rec *repository.RejectionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	line, ok := f.lines[lineID]
	if !ok {
		return apperrors.NotFound("ledger line", lineID)
	}
	if line.Status != fromStatus {
		return apperrors.Conflict("line was modified concurrently; reload and retry")
	}
	line.Status = repository.StatusRejected
	cp := *rec
	cp.LineID = lineID
	f.rejections = append(f.rejections, &cp)
	return nil
}

func (f *fakeLineStore) RejectBatch(_ context.Context, batchID, reason, rejectedBy string) ([]*repository.LedgerLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rejected []*repository.LedgerLine
	for _, id := range f.order {
		line := f.lines[id]
		if line.BatchID != batchID || line.Status.Terminal() {
			continue
		}
		line.Status = repository.StatusRejected
		f.rejections = append(f.rejections, &repository.RejectionRecord{
			LineID:     id,
			BatchID:    batchID,
			Reason:     reason,
			RejectedBy: rejectedBy,
		})
		cp := *line
		rejected = append(rejected, &cp)
	}
	return rejected, nil
}

func (f *fakeLineStore) ListByBatch(_ context.Context, batchID string) ([]*repository.LedgerLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.LedgerLine
	for _, id := range f.order {
		if f.lines[id].BatchID == batchID {
			cp := *f.lines[id]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeLineStore) ListPendingForOwner(_ context.Context, role repository.Role, userID string, minVariance *decimal.Decimal) ([]*repository.LedgerLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.LedgerLine
	for _, id := range f.order {
		line := f.lines[id]
		if line.Status.Terminal() || line.CurrentStage != repository.Stage(role) {
			continue
		}
		owner := line.OwnerForStage(line.CurrentStage)
		if owner == nil || *owner != userID {
			continue
		}
		if minVariance != nil && line.VariancePct.LessThan(*minVariance) {
			continue
		}
		cp := *line
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].VariancePct.GreaterThan(out[j].VariancePct)
	})
	return out, nil
}

func (f *fakeLineStore) BatchStats(_ context.Context, batchID string) (*repository.BatchStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.BatchStats{ByStatus: make(map[repository.Status]repository.StatusStats)}
	for _, id := range f.order {
		line := f.lines[id]
		if line.BatchID != batchID {
			continue
		}
		stats.Total++
		stats.TotalAmount = stats.TotalAmount.Add(line.CurrAmount)
		s := stats.ByStatus[line.Status]
		s.Count++
		s.Sum = s.Sum.Add(line.CurrAmount)
		stats.ByStatus[line.Status] = s
	}
	return stats, nil
}

type fakeCommentStore struct {
	mu      sync.Mutex
	entries []*repository.CommentEntry
}

func (f *fakeCommentStore) Append(_ context.Context, entry *repository.CommentEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *entry
	cp.CommentedAt = time.Now()
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeCommentStore) ListByLine(_ context.Context, lineID string) ([]*repository.CommentEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.CommentEntry
	for _, e := range f.entries {
		if e.LineID == lineID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCommentStore) ExistsForRole(_ context.Context, lineID string, role repository.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.LineID == lineID && e.Role == role && e.Kind == repository.CommentKindComment {
			return true, nil
		}
	}
	return false, nil
}

// fakeDecisionStore reads rejection records from the line store, mirroring
// production where the line repository writes gl_rejections inside its
// transactions and the decision repository only reads them.
type fakeDecisionStore struct {
	mu           sync.Mutex
	disapprovals []*repository.DisapprovalRecord
	lines        *fakeLineStore
}

func (f *fakeDecisionStore) RecordDisapproval(_ context.Context, rec *repository.DisapprovalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	cp.CreatedAt = time.Now()
	f.disapprovals = append(f.disapprovals, &cp)
	return nil
}

func (f *fakeDecisionStore) ListDisapprovalsByLine(_ context.Context, lineID string) ([]*repository.DisapprovalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.DisapprovalRecord
	for _, d := range f.disapprovals {
		if d.LineID == lineID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDecisionStore) ListRejectionsByBatch(_ context.Context, batchID string) ([]*repository.RejectionRecord, error) {
	f.lines.mu.Lock()
	defer f.lines.mu.Unlock()
	var out []*repository.RejectionRecord
	for _, r := range f.lines.rejections {
		if r.BatchID == batchID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeBatchStore struct {
	mu      sync.Mutex
	batches map[string]*repository.IngestBatch
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{batches: make(map[string]*repository.IngestBatch)}
}

func (f *fakeBatchStore) Create(_ context.Context, batch *repository.IngestBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.batches[batch.ID]; exists {
		return apperrors.Newf(apperrors.ErrCodeConflict, "batch already ingested: %s", batch.ID)
	}
	cp := *batch
	cp.CreatedAt = time.Now()
	f.batches[batch.ID] = &cp
	return nil
}

func (f *fakeBatchStore) GetByID(_ context.Context, id string) (*repository.IngestBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch, ok := f.batches[id]
	if !ok {
		return nil, apperrors.NotFound("batch", id)
	}
	cp := *batch
	return &cp, nil
}

// fakeResponsibilityStore keys primary mappings by company|account|role and
// fallbacks by group|role.
type fakeResponsibilityStore struct {
	mu      sync.Mutex
	primary map[string]string
	groups  map[string]string
}

func newFakeResponsibilityStore() *fakeResponsibilityStore {
	return &fakeResponsibilityStore{
		primary: make(map[string]string),
		groups:  make(map[string]string),
	}
}

func (f *fakeResponsibilityStore) assign(companyCode, glAccount string, role repository.Role, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.primary[companyCode+"|"+glAccount+"|"+string(role)] = userID
}

func (f *fakeResponsibilityStore) assignGroup(fsGroup string, role repository.Role, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[fsGroup+"|"+string(role)] = userID
}

func (f *fakeResponsibilityStore) FindOwner(_ context.Context, companyCode, glAccount string, role repository.Role) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if userID, ok := f.primary[companyCode+"|"+glAccount+"|"+string(role)]; ok {
		return &userID, nil
	}
	return nil, nil
}

func (f *fakeResponsibilityStore) FindGroupOwner(_ context.Context, fsGroup string, role repository.Role) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if userID, ok := f.groups[fsGroup+"|"+string(role)]; ok {
		return &userID, nil
	}
	return nil, nil
}

func (f *fakeResponsibilityStore) UpsertMappings(_ context.Context, mappings []repository.ResponsibilityMapping) error {
	for _, m := range mappings {
		f.assign(m.CompanyCode, m.GLAccount, m.Role, m.UserID)
	}
	return nil
}

func (f *fakeResponsibilityStore) UpsertGroupMappings(_ context.Context, mappings []repository.GroupResponsibilityMapping) error {
	for _, m := range mappings {
		f.assignGroup(m.FSGroup, m.Role, m.UserID)
	}
	return nil
}

type publishedEvent struct {
	EventType string
	LineID    string
	ActorID   string
	Recipient repository.Role
	Payload   map[string]any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) PublishLineEvent(_ context.Context, eventType string, line *repository.LedgerLine, actorID string, recipientRole repository.Role, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{
		EventType: eventType,
		LineID:    line.ID,
		ActorID:   actorID,
		Recipient: recipientRole,
		Payload:   payload,
	})
}

func (f *fakePublisher) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.EventType
	}
	return out
}
