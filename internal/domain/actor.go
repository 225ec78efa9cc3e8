package domain

import "time"

// ActorRole enumerates the closed set of roles the lifecycle engine knows.
type ActorRole string

const (
	RoleClient        ActorRole = "CLIENT"
	RoleHandler       ActorRole = "HANDLER"
	RoleSupervisor    ActorRole = "SUPERVISOR"
	RoleAdministrator ActorRole = "ADMINISTRATOR"
)

// ValidRole reports whether the role belongs to the closed set.
func ValidRole(role ActorRole) bool {
	switch role {
	case RoleClient, RoleHandler, RoleSupervisor, RoleAdministrator:
		return true
	}
	return false
}

// ActorRef is the opaque (id, role) pair the auth layer supplies.
// The core trusts it without revalidating credentials.
type ActorRef struct {
	ID   string
	Role ActorRole
}

// Actor models any registered participant: clients, handlers
// (analysts), supervisors and administrators share one directory,
// differing only in their role and a few optional profile fields.
type Actor struct {
	ID           string
	Role         ActorRole
	Name         string
	Email        string
	PasswordHash string
	Phone        *string
	Address      *string
	Specialty    *string
	Area         *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
