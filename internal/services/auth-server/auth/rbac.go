package auth

import (
	"slices"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
)

// RequireRole reports whether id holds one of the allowed roles.
func RequireRole(id domainauth.Identity, allowed ...string) bool {
	return slices.Contains(allowed, id.Role)
}
