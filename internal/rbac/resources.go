package rbac

// Resource keys guarded by the permission core.
const (
	ResourceBlog              = "blog"
	ResourceProject           = "project"
	ResourceDeployment        = "deployment"
	ResourceDeveloper         = "developer"
	ResourceRealEstateProject = "real_estate_project"
	ResourceGiveaway          = "giveaway"
	ResourceInquiry           = "inquiry"
	ResourceUser              = "user"
	ResourceProperty          = "property"
	ResourceExperience        = "experience"
	ResourceProjectCategory   = "project_category"
	ResourceComment           = "comment"
	ResourceGuestbookEntry    = "guestbook_entry"
	ResourceSkill             = "skill"
	ResourceRole              = "role"
	ResourcePermission        = "permission"
)

// Resources lists every resource key in display order.
func Resources() []string {
	return []string{
		ResourceBlog,
		ResourceProject,
		ResourceDeployment,
		ResourceDeveloper,
		ResourceRealEstateProject,
		ResourceGiveaway,
		ResourceInquiry,
		ResourceUser,
		ResourceProperty,
		ResourceExperience,
		ResourceProjectCategory,
		ResourceComment,
		ResourceGuestbookEntry,
		ResourceSkill,
		ResourceRole,
		ResourcePermission,
	}
}

// DefaultVocabulary returns the actions a resource recognises out of the box.
func DefaultVocabulary(resource string) []Action {
	actions := StandardActions()
	if resource == ResourceUser {
		actions = append(actions, ActionAssignRole)
	}
	return actions
}
