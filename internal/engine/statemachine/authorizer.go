package statemachine

import (
	"strings"

	apperrors "motocredito-workers/internal/common/errors"
	"motocredito-workers/internal/models"
)

// Authorizer decides whether actor may move a solicitud from one state to
// another.
type Authorizer interface {
	CanTransition(actor string, from, to models.Estado) error
}

// AllowAll permits every transition.
type AllowAll struct{}

func (AllowAll) CanTransition(string, models.Estado, models.Estado) error { return nil }

// RoleAuthorizer grants target states per role. Actors are written
// "role:user"; an actor without a prefix is its own role.
type RoleAuthorizer struct {
	Roles map[string][]models.Estado
}

func NewRoleAuthorizer(roles map[string][]string) *RoleAuthorizer {
	r := &RoleAuthorizer{Roles: make(map[string][]models.Estado, len(roles))}
	for role, targets := range roles {
		for _, t := range targets {
			r.Roles[role] = append(r.Roles[role], models.Estado(t))
		}
	}
	return r
}

func RoleOf(actor string) string {
	if i := strings.IndexByte(actor, ':'); i >= 0 {
		return actor[:i]
	}
	return actor
}

func (r *RoleAuthorizer) CanTransition(actor string, from, to models.Estado) error {
	for _, allowed := range r.Roles[RoleOf(actor)] {
		if allowed == to {
			return nil
		}
	}
	return apperrors.NewPermissionDeniedError(actor, string(from), string(to))
}
