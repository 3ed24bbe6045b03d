package httpapi

import (
	"time"

	"github.com/dmitrijs2005/homedock/internal/server/models"
	"github.com/dmitrijs2005/homedock/internal/server/services"
)

type userJSON struct {
	ID          string    `json:"id"`
	UserName    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Roles       []string  `json:"roles"`
	Theme       string    `json:"theme,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toUser(u *models.User) userJSON {
	roles := u.Roles.Strings()
	if roles == nil {
		roles = []string{}
	}
	return userJSON{
		ID:          u.ID,
		UserName:    u.UserName,
		DisplayName: u.DisplayName,
		Roles:       roles,
		Theme:       u.Theme,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type sessionJSON struct {
	User         userJSON `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
}

func toSession(s *services.Session) sessionJSON {
	return sessionJSON{
		User:         toUser(s.User),
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
	}
}

type tokensJSON struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type roleJSON struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	IsSystem    bool      `json:"isSystem"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toRole(r *models.Role) roleJSON {
	return roleJSON{
		Name:        r.Name,
		Description: r.Description,
		Permissions: r.Permissions.Strings(),
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// credentialJSON never carries the envelope. Data is set only on a single
// decrypted read.
type credentialJSON struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ServiceType string         `json:"serviceType"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Data        any            `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func toCredential(c *models.Credential) credentialJSON {
	return credentialJSON{
		ID:          c.ID,
		Name:        c.Name,
		ServiceType: c.ServiceType,
		Metadata:    c.Metadata,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func mapSlice[T any, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
