package models

// User roles
const (
	RoleFreelancer = "freelancer"
	RoleClient     = "client"
)

// Participant response statuses
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// Authentication sources
const (
	AuthTypeLocal = "local"
	AuthTypeLDAP  = "ldap"
)

// IsValidRole reports whether role is one of the supported user roles.
func IsValidRole(role string) bool {
	return role == RoleFreelancer || role == RoleClient
}

// IsResponseStatus reports whether status is an answer a participant may give.
func IsResponseStatus(status string) bool {
	return status == StatusAccepted || status == StatusDeclined
}
