package domain

// Priority is a three-tier urgency classification for a notification.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// PriorityOf derives the priority tier for a scene. The mapping is total:
// scenes without an explicit tier are LOW. The result is computed once at
// message creation and stored denormalized on the body, so persisted
// messages keep their priority even if this mapping changes later.
func PriorityOf(s Scene) Priority {
	switch s {
	case SceneTaskOverdue,
		SceneTaskReviewRequest,
		SceneTaskReviewResult,
		SceneProjectMemberApply,
		SceneProjectMemberInvited,
		SceneSystemSecurityAlert:
		return PriorityHigh
	case SceneTaskDeadlineRemind,
		SceneProjectRoleChanged,
		SceneAchievementReviewRequest,
		SceneAchievementStatusChanged,
		SceneWikiPageUpdated,
		SceneWikiPageDeleted:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
