package oserver

import (
	"context"
	"slices"

	"github.com/Seann-Moser/rbac"

	"github.com/Seann-Moser/oauth2core/oauth/scope"
)

// RoleLister is the part of *rbac.Manager the scope validator needs.
type RoleLister interface {
	ListRolesForUser(ctx context.Context, userID string) ([]string, error)
}

var (
	_ RoleLister     = (*rbac.Manager)(nil)
	_ ScopeValidator = (*RBACScopeValidator)(nil)
)

// RBACScopeValidator treats scopes as role names: a client may ask for a scope
// when it holds the role of the same name. Clients are looked up as RBAC users
// by client_id.
type RBACScopeValidator struct {
	roles RoleLister
	// Defaults are granted when a request names no scope. Empty means every
	// role the client holds.
	Defaults scope.Scope
}

func NewRBACScopeValidator(roles RoleLister, defaults ...string) *RBACScopeValidator {
	return &RBACScopeValidator{roles: roles, Defaults: scope.New(defaults...)}
}

func (v *RBACScopeValidator) ValidateScopes(ctx context.Context, clientID string, scopes scope.Scope) (bool, error) {
	roles, err := v.roles.ListRolesForUser(ctx, clientID)
	if err != nil {
		return false, err
	}
	return scopes.Subset(scope.Scope(roles)), nil
}

func (v *RBACScopeValidator) DefaultScopes(ctx context.Context, clientID string) (scope.Scope, error) {
	roles, err := v.roles.ListRolesForUser(ctx, clientID)
	if err != nil {
		return nil, err
	}
	slices.Sort(roles)
	held := scope.New(roles...)
	if v.Defaults.Empty() {
		return held, nil
	}
	var out []string
	for _, s := range v.Defaults {
		if held.Contains(s) {
			out = append(out, s)
		}
	}
	return scope.New(out...), nil
}
