package domain

// Scene identifies the business event that triggered a notification.
// The set is closed; PriorityOf and SceneModule are total over it.
type Scene string

const (
	SceneTaskAssign         Scene = "TASK_ASSIGN"
	SceneTaskStatusChanged  Scene = "TASK_STATUS_CHANGED"
	SceneTaskReviewRequest  Scene = "TASK_REVIEW_REQUEST"
	SceneTaskReviewResult   Scene = "TASK_REVIEW_RESULT"
	SceneTaskDeadlineRemind Scene = "TASK_DEADLINE_REMIND"
	SceneTaskOverdue        Scene = "TASK_OVERDUE"

	SceneProjectCreated        Scene = "PROJECT_CREATED"
	SceneProjectArchived       Scene = "PROJECT_ARCHIVED"
	SceneProjectDeleted        Scene = "PROJECT_DELETED"
	SceneProjectMemberApply    Scene = "PROJECT_MEMBER_APPLY"
	SceneProjectMemberInvited  Scene = "PROJECT_MEMBER_INVITED"
	SceneProjectMemberRemoved  Scene = "PROJECT_MEMBER_REMOVED"
	SceneProjectMemberApproval Scene = "PROJECT_MEMBER_APPROVAL"
	SceneProjectRoleChanged    Scene = "PROJECT_ROLE_CHANGED"
	SceneProjectStatusChanged  Scene = "PROJECT_STATUS_CHANGED"

	SceneAchievementFileUploaded       Scene = "ACHIEVEMENT_FILE_UPLOADED"
	SceneAchievementCreated            Scene = "ACHIEVEMENT_CREATED"
	SceneAchievementDeleted            Scene = "ACHIEVEMENT_DELETED"
	SceneAchievementFileDeleted        Scene = "ACHIEVEMENT_FILE_DELETED"
	SceneAchievementReviewRequest      Scene = "ACHIEVEMENT_REVIEW_REQUEST"
	SceneAchievementStatusChanged      Scene = "ACHIEVEMENT_STATUS_CHANGED"
	SceneAchievementPublished          Scene = "ACHIEVEMENT_PUBLISHED"
	SceneAchievementFilesBatchDeleted  Scene = "ACHIEVEMENT_FILES_BATCH_DELETED"
	SceneAchievementFilesBatchUploaded Scene = "ACHIEVEMENT_FILES_BATCH_UPLOADED"

	SceneWikiPageCreated Scene = "WIKI_PAGE_CREATED"
	SceneWikiPageUpdated Scene = "WIKI_PAGE_UPDATED"
	SceneWikiPageDeleted Scene = "WIKI_PAGE_DELETED"

	SceneUserCustomMessage Scene = "USER_CUSTOM_MESSAGE"

	SceneSystemSecurityAlert Scene = "SYSTEM_SECURITY_ALERT"
	SceneSystemBroadcast     Scene = "SYSTEM_BROADCAST"
)

// SceneModule returns the functional module a scene belongs to
// (TASK, PROJECT, ACHIEVEMENT, WIKI, USER, SYSTEM).
func SceneModule(s Scene) string {
	switch s {
	case SceneTaskAssign, SceneTaskStatusChanged, SceneTaskReviewRequest,
		SceneTaskReviewResult, SceneTaskDeadlineRemind, SceneTaskOverdue:
		return "TASK"
	case SceneProjectCreated, SceneProjectArchived, SceneProjectDeleted,
		SceneProjectMemberApply, SceneProjectMemberInvited, SceneProjectMemberRemoved,
		SceneProjectMemberApproval, SceneProjectRoleChanged, SceneProjectStatusChanged:
		return "PROJECT"
	case SceneAchievementFileUploaded, SceneAchievementCreated, SceneAchievementDeleted,
		SceneAchievementFileDeleted, SceneAchievementReviewRequest, SceneAchievementStatusChanged,
		SceneAchievementPublished, SceneAchievementFilesBatchDeleted, SceneAchievementFilesBatchUploaded:
		return "ACHIEVEMENT"
	case SceneWikiPageCreated, SceneWikiPageUpdated, SceneWikiPageDeleted:
		return "WIKI"
	case SceneUserCustomMessage:
		return "USER"
	case SceneSystemSecurityAlert, SceneSystemBroadcast:
		return "SYSTEM"
	default:
		return "SYSTEM"
	}
}

// ActionableScenes lists scenes whose recipient rows have a bounded
// response window and are auto-expired by the sweeper when it elapses.
func ActionableScenes() []Scene {
	return []Scene{SceneProjectMemberInvited, SceneProjectMemberApply}
}

// AllScenes lists every scene; used by tests to assert mappings are total.
func AllScenes() []Scene {
	return []Scene{
		SceneTaskAssign, SceneTaskStatusChanged, SceneTaskReviewRequest,
		SceneTaskReviewResult, SceneTaskDeadlineRemind, SceneTaskOverdue,
		SceneProjectCreated, SceneProjectArchived, SceneProjectDeleted,
		SceneProjectMemberApply, SceneProjectMemberInvited, SceneProjectMemberRemoved,
		SceneProjectMemberApproval, SceneProjectRoleChanged, SceneProjectStatusChanged,
		SceneAchievementFileUploaded, SceneAchievementCreated, SceneAchievementDeleted,
		SceneAchievementFileDeleted, SceneAchievementReviewRequest, SceneAchievementStatusChanged,
		SceneAchievementPublished, SceneAchievementFilesBatchDeleted, SceneAchievementFilesBatchUploaded,
		SceneWikiPageCreated, SceneWikiPageUpdated, SceneWikiPageDeleted,
		SceneUserCustomMessage,
		SceneSystemSecurityAlert, SceneSystemBroadcast,
	}
}
