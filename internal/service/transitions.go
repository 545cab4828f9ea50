package service

import "gl-reconciliation-backend/internal/repository"

// The whole workflow is driven by two closed tables. Any (role, action) pair
// not present here is rejected; callers cannot supply their own target
// states.

// advanceRule is one row of the forward transition table.
type advanceRule struct {
	ToStage  repository.Stage
	ToStatus repository.Status
	// NextOwnerRole is the owner field the caller must supply a user for.
	// Nil marks the terminal transition, which takes no next owner.
	NextOwnerRole *repository.Role
}

// disapproveRule is one row of the backward transition table. Strictly one
// stage at a time.
type disapproveRule struct {
	ToStage  repository.Stage
	ToStatus repository.Status
}

func rolePtr(r repository.Role) *repository.Role { return &r }

var advanceRules = map[repository.Role]advanceRule{
	repository.RoleMaker: {
		ToStage:       repository.StageReviewer,
		ToStatus:      repository.StatusSubmittedToReviewer,
		NextOwnerRole: rolePtr(repository.RoleReviewer),
	},
	repository.RoleReviewer: {
		ToStage:       repository.StageFC,
		ToStatus:      repository.StatusSubmittedToFC,
		NextOwnerRole: rolePtr(repository.RoleFC),
	},
	repository.RoleFC: {
		ToStage:       repository.StageCFO,
		ToStatus:      repository.StatusSubmittedToCFO,
		NextOwnerRole: rolePtr(repository.RoleCFO),
	},
	repository.RoleCFO: {
		ToStage:  repository.StageApproved,
		ToStatus: repository.StatusApproved,
	},
}

// A maker has no earlier stage to bounce to, so it has no row here.
var disapproveRules = map[repository.Role]disapproveRule{
	repository.RoleReviewer: {
		ToStage:  repository.StageMaker,
		ToStatus: repository.StatusAwaitingMaker,
	},
	repository.RoleFC: {
		ToStage:  repository.StageReviewer,
		ToStatus: repository.StatusAwaitingReviewer,
	},
	repository.RoleCFO: {
		ToStage:  repository.StageFC,
		ToStatus: repository.StatusAwaitingFC,
	},
}

// stageForRole maps an acting role to the stage it owns.
func stageForRole(role repository.Role) repository.Stage {
	return repository.Stage(role)
}
