package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/logging"
	"github.com/dmitrijs2005/homedock/internal/server/metrics"
	"github.com/dmitrijs2005/homedock/internal/server/models"
	"github.com/dmitrijs2005/homedock/internal/server/rbac"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/homedock/internal/validation"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const roleCacheSize = 256

// RoleInput creates a custom role. Permission strings are stored as given.
type RoleInput struct {
	Name        string   `json:"name" validate:"required,min=2,max=64,slug"`
	Description string   `json:"description" validate:"max=256"`
	Permissions []string `json:"permissions" validate:"max=64,dive,required,max=64"`
}

type RoleUpdate struct {
	Description string   `json:"description" validate:"max=256"`
	Permissions []string `json:"permissions" validate:"max=64,dive,required,max=64"`
}

// RoleService manages the role catalog and answers permission lookups.
// System roles resolve from the built-in table; custom roles are read from
// the store and cached.
type RoleService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	resolver    *rbac.Resolver
	cache       *expirable.LRU[string, []rbac.Permission]
	metrics     *metrics.Metrics
	log         logging.Logger
}

// NewRoleService returns a role service whose custom-role lookups are
// cached for cacheTTL. A zero TTL disables the cache.
func NewRoleService(db *sql.DB, m repomanager.RepositoryManager, cacheTTL time.Duration, mtr *metrics.Metrics, log logging.Logger) *RoleService {
	s := &RoleService{
		db:          db,
		repomanager: m,
		resolver:    rbac.NewResolver(nil),
		metrics:     mtr,
		log:         log.With("module", "roles"),
	}
	if cacheTTL > 0 {
		s.cache = expirable.NewLRU[string, []rbac.Permission](roleCacheSize, nil, cacheTTL)
	}
	return s
}

func (s *RoleService) invalidate(name string) {
	if s.cache != nil {
		s.invalidate(name)
	}
}

func (s *RoleService) remember(name string, perms []rbac.Permission) {
	if s.cache != nil {
		s.remember(name, perms)
	}
}

// EnsureSystemRoles inserts the built-in roles that are missing.
func (s *RoleService) EnsureSystemRoles(ctx context.Context) error {
	repo := s.repomanager.Roles(s.db)
	for _, name := range rbac.SystemRoleNames() {
		role := &models.Role{
			Name:        name,
			Description: rbac.SystemRoleDescription(name),
			Permissions: models.PermissionList(rbac.DefaultRolePermissions[name]),
			IsSystem:    true,
		}
		inserted, err := repo.EnsureSystem(ctx, role)
		if err != nil {
			return fmt.Errorf("error seeding role %s: %w", name, err)
		}
		if inserted {
			s.log.Info(ctx, "system role created", "role", name)
		}
	}
	return nil
}

func (s *RoleService) List(ctx context.Context) ([]*models.Role, error) {
	return s.repomanager.Roles(s.db).List(ctx)
}

// Exists reports whether name is a system role or a stored custom role.
func (s *RoleService) Exists(ctx context.Context, name string) (bool, error) {
	if rbac.IsSystemRole(name) {
		return true, nil
	}
	_, err := s.repomanager.Roles(s.db).Get(ctx, name)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RoleService) Create(ctx context.Context, in RoleInput) (*models.Role, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if rbac.IsSystemRole(in.Name) {
		return nil, common.ErrDuplicateRole
	}

	role := &models.Role{
		Name:        in.Name,
		Description: in.Description,
		Permissions: toPermissionList(in.Permissions),
	}
	if err := s.repomanager.Roles(s.db).Create(ctx, role); err != nil {
		return nil, err
	}
	s.invalidate(role.Name)
	s.log.Info(ctx, "role created", "role", role.Name)
	return role, nil
}

func (s *RoleService) Update(ctx context.Context, name string, in RoleUpdate) (*models.Role, error) {
	if rbac.IsSystemRole(name) {
		return nil, common.ErrSystemRole
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	repo := s.repomanager.Roles(s.db)
	role := &models.Role{
		Name:        name,
		Description: in.Description,
		Permissions: toPermissionList(in.Permissions),
	}
	if err := repo.Update(ctx, role); err != nil {
		return nil, err
	}
	s.invalidate(name)

	return repo.Get(ctx, name)
}

func (s *RoleService) Delete(ctx context.Context, name string) error {
	if rbac.IsSystemRole(name) {
		return common.ErrSystemRole
	}
	if err := s.repomanager.Roles(s.db).Delete(ctx, name); err != nil {
		return err
	}
	s.invalidate(name)
	s.log.Info(ctx, "role deleted", "role", name)
	return nil
}

// Permissions returns the union of the permissions granted by roles.
// Unknown role names grant nothing.
func (s *RoleService) Permissions(ctx context.Context, roles []string) (rbac.PermissionSet, error) {
	set := s.resolver.Resolve(roles)

	for _, name := range roles {
		if rbac.IsSystemRole(name) {
			continue
		}
		perms, err := s.customPermissions(ctx, name)
		if err != nil {
			return nil, err
		}
		set.Add(perms...)
	}
	return set, nil
}

func (s *RoleService) customPermissions(ctx context.Context, name string) ([]rbac.Permission, error) {
	if s.cache != nil {
		if perms, ok := s.cache.Get(name); ok {
			s.metrics.RoleCache(true)
			return perms, nil
		}
		s.metrics.RoleCache(false)
	}

	role, err := s.repomanager.Roles(s.db).Get(ctx, name)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		s.remember(name, nil)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("error loading role %s: %w", name, err)
	}

	perms := []rbac.Permission(role.Permissions)
	s.remember(name, perms)
	return perms, nil
}

func toPermissionList(in []string) models.PermissionList {
	out := make(models.PermissionList, 0, len(in))
	for _, p := range in {
		out = append(out, rbac.Permission(p))
	}
	return out
}
