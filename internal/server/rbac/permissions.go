// Package rbac maps role names to permissions. It holds the closed
// permission vocabulary and the built-in role table; checks use OR
// semantics: holding any one of the required permissions is enough.
package rbac

import (
	"sort"
)

type Permission string

const (
	BoardView         Permission = "board:view"
	BoardEdit         Permission = "board:edit"
	BoardDelete       Permission = "board:delete"
	CardView          Permission = "card:view"
	CardEdit          Permission = "card:edit"
	ThemeView         Permission = "theme:view"
	ThemeEdit         Permission = "theme:edit"
	CredentialView    Permission = "credential:view"
	CredentialEdit    Permission = "credential:edit"
	IntegrationManage Permission = "integration:manage"
	UserView          Permission = "user:view"
	UserManage        Permission = "user:manage"
	RoleManage        Permission = "role:manage"
	SystemView        Permission = "system:view"
	SettingsEdit      Permission = "settings:edit"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// AllPermissions is the closed vocabulary in a stable order.
var AllPermissions = []Permission{
	BoardView, BoardEdit, BoardDelete,
	CardView, CardEdit,
	ThemeView, ThemeEdit,
	CredentialView, CredentialEdit,
	IntegrationManage,
	UserView, UserManage, RoleManage,
	SystemView, SettingsEdit,
}

// DefaultRolePermissions is the fixed table of system roles.
var DefaultRolePermissions = map[string][]Permission{
	RoleAdmin: AllPermissions,
	RoleEditor: {
		BoardView, BoardEdit,
		CardView, CardEdit,
		ThemeView, ThemeEdit,
		CredentialView, CredentialEdit,
		IntegrationManage,
		SystemView,
	},
	RoleViewer: {
		BoardView, CardView, ThemeView, SystemView,
	},
}

var systemDescriptions = map[string]string{
	RoleAdmin:  "Full access including user and role management",
	RoleEditor: "Edit boards, cards, themes and integrations",
	RoleViewer: "Read-only access to dashboards",
}

// SystemRoleNames lists the built-in roles in a stable order.
func SystemRoleNames() []string {
	return []string{RoleAdmin, RoleEditor, RoleViewer}
}

func IsSystemRole(name string) bool {
	_, ok := DefaultRolePermissions[name]
	return ok
}

func SystemRoleDescription(name string) string {
	return systemDescriptions[name]
}

func IsKnown(p Permission) bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	s.Add(perms...)
	return s
}

func (s PermissionSet) Add(perms ...Permission) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAny reports whether the set holds at least one of required. An empty
// requirement is always satisfied.
func (s PermissionSet) HasAny(required ...Permission) bool {
	if len(required) == 0 {
		return true
	}
	for _, p := range required {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Sorted returns the permissions in lexical order, as strings for JSON.
func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

// Resolver unions the permissions of role names using a fixed table.
type Resolver struct {
	table map[string][]Permission
}

// NewResolver returns a resolver over table, or over DefaultRolePermissions
// when table is nil.
func NewResolver(table map[string][]Permission) *Resolver {
	if table == nil {
		table = DefaultRolePermissions
	}
	return &Resolver{table: table}
}

// Resolve returns the union of the roles' permissions. Unknown roles add
// nothing.
func (r *Resolver) Resolve(roles []string) PermissionSet {
	set := make(PermissionSet)
	for _, role := range roles {
		set.Add(r.table[role]...)
	}
	return set
}

// HasAny is Resolve followed by PermissionSet.HasAny.
func (r *Resolver) HasAny(roles []string, required ...Permission) bool {
	return r.Resolve(roles).HasAny(required...)
}
