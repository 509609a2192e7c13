package shared

// Application workflow and notification permissions.
const (
	PermApplicationsView       = "applications.view"
	PermApplicationsCreate     = "applications.create"
	PermApplicationsEdit       = "applications.edit"
	PermApplicationsTransition = "applications.transition"
	PermApplicationsAssign     = "applications.assign"
	PermApplicationsDelete     = "applications.delete"

	PermNotificationsView = "notifications.view"
)

// ApplicationScopes lists all permissions related to applications.
func ApplicationScopes() []string {
	return []string{
		PermApplicationsView,
		PermApplicationsCreate,
		PermApplicationsEdit,
		PermApplicationsTransition,
		PermApplicationsAssign,
		PermApplicationsDelete,
	}
}

// AllScopes returns every permission code known to the console.
func AllScopes() []string {
	scopes := append(CoreScopes(), ApplicationScopes()...)
	return append(scopes, PermNotificationsView)
}
