package service

import (
	"context"

	"gl-reconciliation-backend/internal/repository"
)

// ResponsibilityResolver maps a (company, account) pair to the user owning a
// role, falling back to the FS-group assignment when a group tag is present
// and no line-level mapping exists. Read-only; an unresolved role is nil,
// not an error — callers decide whether that blocks anything.
type ResponsibilityResolver struct {
	store ResponsibilityStore
}

// NewResponsibilityResolver creates a new ResponsibilityResolver.
func NewResponsibilityResolver(store ResponsibilityStore) *ResponsibilityResolver {
	return &ResponsibilityResolver{store: store}
}

// Resolve returns the user id owning role for (companyCode, glAccount), or
// nil when neither the primary mapping nor the fsGroup fallback has one.
// fsGroup may be empty, in which case only the primary lookup runs.
func (r *ResponsibilityResolver) Resolve(ctx context.Context, companyCode, glAccount, fsGroup string, role repository.Role) (*string, error) {
	userID, err := r.store.FindOwner(ctx, companyCode, glAccount, role)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		return userID, nil
	}

	if fsGroup == "" {
		return nil, nil
	}
	return r.store.FindGroupOwner(ctx, fsGroup, role)
}
