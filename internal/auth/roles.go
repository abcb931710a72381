package auth

// Proctor role constants.
const (
	RoleViewer  = "viewer"
	RoleProctor = "proctor"
	RoleAdmin   = "admin"
)

// AllProctorRoles returns all valid proctor roles.
func AllProctorRoles() []string {
	return []string{RoleViewer, RoleProctor, RoleAdmin}
}

// ReviewRoles returns roles allowed to act on flagged sessions.
func ReviewRoles() []string {
	return []string{RoleProctor, RoleAdmin}
}
