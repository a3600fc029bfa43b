package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityOf_TotalAndDeterministic(t *testing.T) {
	valid := map[Priority]bool{PriorityHigh: true, PriorityMedium: true, PriorityLow: true}

	for _, scene := range AllScenes() {
		first := PriorityOf(scene)
		assert.True(t, valid[first], "scene %s mapped to undefined priority %q", scene, first)
		assert.Equal(t, first, PriorityOf(scene), "scene %s mapping is not deterministic", scene)
	}
}

func TestPriorityOf_Tiers(t *testing.T) {
	tests := []struct {
		scene Scene
		want  Priority
	}{
		{SceneTaskOverdue, PriorityHigh},
		{SceneTaskReviewRequest, PriorityHigh},
		{SceneTaskReviewResult, PriorityHigh},
		{SceneProjectMemberApply, PriorityHigh},
		{SceneProjectMemberInvited, PriorityHigh},
		{SceneSystemSecurityAlert, PriorityHigh},
		{SceneTaskDeadlineRemind, PriorityMedium},
		{SceneProjectRoleChanged, PriorityMedium},
		{SceneAchievementReviewRequest, PriorityMedium},
		{SceneAchievementStatusChanged, PriorityMedium},
		{SceneWikiPageUpdated, PriorityMedium},
		{SceneWikiPageDeleted, PriorityMedium},
		{SceneWikiPageCreated, PriorityLow},
		{SceneUserCustomMessage, PriorityLow},
		{SceneProjectCreated, PriorityLow},
		{SceneSystemBroadcast, PriorityLow},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, PriorityOf(tc.scene), "scene %s", tc.scene)
	}
}

func TestSceneModule_Total(t *testing.T) {
	known := map[string]bool{
		"TASK": true, "PROJECT": true, "ACHIEVEMENT": true,
		"WIKI": true, "USER": true, "SYSTEM": true,
	}
	for _, scene := range AllScenes() {
		assert.True(t, known[SceneModule(scene)], "scene %s has unknown module", scene)
	}
}
