package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gl-reconciliation-backend/internal/repository"
)

func TestAdvanceRulesCoverEveryRole(t *testing.T) {
	for _, role := range []repository.Role{
		repository.RoleMaker, repository.RoleReviewer, repository.RoleFC, repository.RoleCFO,
	} {
		_, ok := advanceRules[role]
		assert.True(t, ok, "role %s has no advance rule", role)
	}
	assert.Len(t, advanceRules, 4)
}

func TestAdvanceRulesTargetConsistentStates(t *testing.T) {
	// Every target status must belong to the target stage.
	for role, rule := range advanceRules {
		stage, ok := rule.ToStatus.StageOf()
		require.True(t, ok, "role %s advances to stageless status %s", role, rule.ToStatus)
		assert.Equal(t, rule.ToStage, stage, "role %s", role)
	}
}

func TestOnlyTerminalAdvanceTakesNoNextOwner(t *testing.T) {
	for role, rule := range advanceRules {
		if rule.ToStatus == repository.StatusApproved {
			assert.Nil(t, rule.NextOwnerRole, "terminal advance must not take a next owner")
			continue
		}
		require.NotNil(t, rule.NextOwnerRole, "role %s", role)
		// The next owner is the role owning the receiving stage.
		assert.Equal(t, repository.Stage(*rule.NextOwnerRole), rule.ToStage, "role %s", role)
	}
}

func TestDisapproveRulesGoExactlyOneStageBack(t *testing.T) {
	order := []repository.Stage{
		repository.StageMaker, repository.StageReviewer, repository.StageFC, repository.StageCFO,
	}
	position := make(map[repository.Stage]int, len(order))
	for i, s := range order {
		position[s] = i
	}

	for role, rule := range disapproveRules {
		from := position[stageForRole(role)]
		to, ok := position[rule.ToStage]
		require.True(t, ok, "role %s bounces outside the review stages", role)
		assert.Equal(t, from-1, to, "role %s must bounce exactly one stage back", role)

		stage, ok := rule.ToStatus.StageOf()
		require.True(t, ok)
		assert.Equal(t, rule.ToStage, stage, "role %s", role)
	}
}

func TestMakerHasNoDisapproveRule(t *testing.T) {
	_, ok := disapproveRules[repository.RoleMaker]
	assert.False(t, ok)
	assert.Len(t, disapproveRules, 3)
}

func TestRejectedStatusCarriesNoStage(t *testing.T) {
	_, ok := repository.StatusRejected.StageOf()
	assert.False(t, ok)
	assert.True(t, repository.StatusRejected.Terminal())
	assert.True(t, repository.StatusApproved.Terminal())
	assert.False(t, repository.StatusAwaitingCFO.Terminal())
}
