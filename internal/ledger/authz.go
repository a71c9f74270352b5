package ledger

import "earnify-bot/internal/models"

// Authorizer decides whether a user may run administrative operations.
type Authorizer interface {
	IsAdmin(u *models.User) bool
}

// RoleAuthorizer grants admin rights to every user carrying the admin role.
type RoleAuthorizer struct{}

func (RoleAuthorizer) IsAdmin(u *models.User) bool {
	return u != nil && u.Role == models.RoleAdmin
}
