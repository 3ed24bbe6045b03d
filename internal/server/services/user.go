// Package services contains server-side business logic: identities and
// sessions, the role catalog, refresh token storage and encrypted
// credentials.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/cryptox"
	"github.com/dmitrijs2005/homedock/internal/logging"
	"github.com/dmitrijs2005/homedock/internal/server/auth"
	"github.com/dmitrijs2005/homedock/internal/server/metrics"
	"github.com/dmitrijs2005/homedock/internal/server/models"
	"github.com/dmitrijs2005/homedock/internal/server/rbac"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/homedock/internal/validation"
	"gopkg.in/yaml.v3"
)

// TokenPair bundles a short-lived access token and a single-use refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is the result of a successful register or login.
type Session struct {
	User   *models.User
	Tokens TokenPair
}

// Profile is a user together with the permissions its roles grant.
type Profile struct {
	User        *models.User
	Permissions []string
}

type RegisterInput struct {
	UserName    string `json:"username" validate:"required,min=3,max=64,username"`
	Password    string `json:"password" validate:"required,min=8,max=256"`
	DisplayName string `json:"displayName" validate:"max=128"`
}

type ProfileInput struct {
	DisplayName string `json:"displayName" validate:"max=128"`
	Theme       string `json:"theme" validate:"max=64"`
}

type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=256"`
}

// UserServiceDeps groups the collaborators of UserService.
type UserServiceDeps struct {
	DB         *sql.DB
	Repos      repomanager.RepositoryManager
	Issuer     *auth.Issuer
	Tokens     *RefreshTokenStore
	Roles      *RoleService
	Hasher     *cryptox.PasswordHasher
	RefreshTTL time.Duration
	Metrics    *metrics.Metrics
	Logger     logging.Logger
}

// UserService handles registration, login, token refresh and account
// management.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	tokens      *RefreshTokenStore
	roles       *RoleService
	hasher      *cryptox.PasswordHasher
	refreshTTL  time.Duration
	metrics     *metrics.Metrics
	log         logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(d UserServiceDeps) *UserService {
	return &UserService{
		db:          d.DB,
		repomanager: d.Repos,
		issuer:      d.Issuer,
		tokens:      d.Tokens,
		roles:       d.Roles,
		hasher:      d.Hasher,
		refreshTTL:  d.RefreshTTL,
		metrics:     d.Metrics,
		log:         d.Logger.With("module", "users"),
	}
}

// Register creates a viewer account and opens its first session.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := validation.Struct(in); err != nil {
		s.metrics.AuthEvent("register", "invalid")
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	displayName := in.DisplayName
	if displayName == "" {
		displayName = in.UserName
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		UserName:     in.UserName,
		PasswordHash: hash,
		DisplayName:  displayName,
		Roles:        models.RoleNames{common.DefaultRole},
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateUsername) {
			s.metrics.AuthEvent("register", "duplicate")
		}
		return nil, err
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.metrics.AuthEvent("register", "success")
	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return session, nil
}

// Login verifies the password and opens a session. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, userName, password string) (*Session, error) {
	user, err := s.repomanager.Users(s.db).GetByUserName(ctx, userName)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.metrics.AuthEvent("login", "error")
			return nil, err
		}
		s.hasher.Verify(password, s.dummy())
		s.metrics.AuthEvent("login", "invalid_credentials")
		return nil, common.ErrInvalidCredentials
	}

	if password == "" || !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.AuthEvent("login", "invalid_credentials")
		return nil, common.ErrInvalidCredentials
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		s.metrics.AuthEvent("login", "error")
		return nil, err
	}
	s.metrics.AuthEvent("login", "success")
	return session, nil
}

// Refresh rotates refreshToken and mints an access token carrying the
// user's current roles.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		s.metrics.AuthEvent("refresh", "invalid")
		return nil, common.ErrInvalidRefreshToken
	}

	userID, next, err := s.tokens.Rotate(ctx, refreshToken, s.refreshTTL)
	if err != nil {
		if errors.Is(err, common.ErrInvalidRefreshToken) {
			s.metrics.AuthEvent("refresh", "invalid")
		} else {
			s.metrics.AuthEvent("refresh", "error")
		}
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if rerr := s.tokens.Revoke(ctx, next); rerr != nil {
			s.log.Warn(ctx, "failed to revoke refresh token of missing user", "user_id", userID, "error", rerr)
		}
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.AuthEvent("refresh", "invalid")
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, err
	}

	access, err := s.issuer.IssueAccess(user.ID, user.UserName, user.Roles.Strings())
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}

	s.metrics.AuthEvent("refresh", "success")
	return &TokenPair{AccessToken: access, RefreshToken: next}, nil
}

// Logout revokes refreshToken. It succeeds for unknown tokens.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return err
	}
	s.metrics.AuthEvent("logout", "success")
	return nil
}

// Me returns the stored user and its effective permissions.
func (s *UserService) Me(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	perms, err := s.roles.Permissions(ctx, user.Roles.Strings())
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Permissions: perms.Sorted()}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	repo := s.repomanager.Users(s.db)
	if err := repo.UpdateProfile(ctx, userID, in.DisplayName, in.Theme); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, userID)
}

// ChangePassword replaces the password and ends every session of the user.
func (s *UserService) ChangePassword(ctx context.Context, userID string, in PasswordChange) error {
	if err := validation.Struct(in); err != nil {
		return err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(in.CurrentPassword, user.PasswordHash) {
		return common.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	if err := repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	n, err := s.tokens.RevokeAll(ctx, userID)
	if err != nil {
		return err
	}
	s.log.Info(ctx, "password changed", "user_id", userID, "sessions_revoked", n)
	return nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx)
}

// SetRoles replaces the roles of userID. Names missing from the catalog are
// accepted and grant nothing.
func (s *UserService) SetRoles(ctx context.Context, userID string, roles []string) (*models.User, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: roles is required", common.ErrValidation)
	}
	for _, name := range roles {
		ok, err := s.roles.Exists(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.log.Warn(ctx, "assigning unknown role", "user_id", userID, "role", name)
		}
	}

	repo := s.repomanager.Users(s.db)
	if err := repo.UpdateRoles(ctx, userID, models.RoleNames(roles)); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user roles changed", "user_id", userID, "roles", roles)
	return repo.GetByID(ctx, userID)
}

// EnsureAdmin creates userName as an admin, or grants admin to the existing
// account and resets its password. It reports whether the user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, userName, password string) (bool, error) {
	in := RegisterInput{UserName: userName, Password: password}
	if err := validation.Struct(in); err != nil {
		return false, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("error hashing password: %w", err)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByUserName(ctx, userName)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		_, err := repo.Create(ctx, &models.User{
			UserName:     userName,
			PasswordHash: hash,
			DisplayName:  userName,
			Roles:        models.RoleNames{rbac.RoleAdmin},
		})
		return err == nil, err
	case err != nil:
		return false, err
	}

	if !slices.Contains(user.Roles, rbac.RoleAdmin) {
		if err := repo.UpdateRoles(ctx, user.ID, append(user.Roles, rbac.RoleAdmin)); err != nil {
			return false, err
		}
	}
	if err := repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return false, err
	}
	return false, nil
}

// SeedFile is the bootstrap users document.
type SeedFile struct {
	Users []SeedUser `yaml:"users"`
}

type SeedUser struct {
	UserName    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	DisplayName string   `yaml:"display_name"`
	Roles       []string `yaml:"roles"`
}

// SeedFromFile creates the users listed in a YAML file. Existing users are
// left untouched. It returns the number of users created.
func (s *UserService) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("error reading users file: %w", err)
	}

	var doc SeedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("%w: users file: %v", common.ErrConfiguration, err)
	}

	repo := s.repomanager.Users(s.db)
	created := 0
	for _, u := range doc.Users {
		in := RegisterInput{UserName: u.UserName, Password: u.Password, DisplayName: u.DisplayName}
		if err := validation.Struct(in); err != nil {
			return created, fmt.Errorf("seed user %q: %w", u.UserName, err)
		}

		_, err := repo.GetByUserName(ctx, u.UserName)
		if err == nil {
			continue
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return created, err
		}

		roles := u.Roles
		if len(roles) == 0 {
			roles = []string{common.DefaultRole}
		}
		hash, err := s.hasher.Hash(u.Password)
		if err != nil {
			return created, fmt.Errorf("error hashing password: %w", err)
		}
		displayName := u.DisplayName
		if displayName == "" {
			displayName = u.UserName
		}
		if _, err := repo.Create(ctx, &models.User{
			UserName:     u.UserName,
			PasswordHash: hash,
			DisplayName:  displayName,
			Roles:        models.RoleNames(roles),
		}); err != nil {
			return created, err
		}
		created++
		s.log.Info(ctx, "seeded user", "username", u.UserName)
	}
	return created, nil
}

func (s *UserService) openSession(ctx context.Context, user *models.User) (*Session, error) {
	access, err := s.issuer.IssueAccess(user.ID, user.UserName, user.Roles.Strings())
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}
	refresh, err := s.tokens.Issue(ctx, user.ID, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: TokenPair{AccessToken: access, RefreshToken: refresh}}, nil
}

// dummy returns a hash used to spend verification time on unknown users.
func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("homedock-unknown-user")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
