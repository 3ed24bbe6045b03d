package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/server/auth"
	"github.com/dmitrijs2005/homedock/internal/server/rbac"
)

// PermissionSource resolves role names to permissions.
type PermissionSource interface {
	Permissions(ctx context.Context, roles []string) (rbac.PermissionSet, error)
}

// Gateway authenticates bearer tokens and guards routes by permission.
type Gateway struct {
	issuer *auth.Issuer
	perms  PermissionSource
}

func NewGateway(issuer *auth.Issuer, perms PermissionSource) *Gateway {
	return &Gateway{issuer: issuer, perms: perms}
}

func fail(w http.ResponseWriter, err error) {
	status, body := classify(err)
	writeJSON(w, status, body)
}

// Authenticate requires "Authorization: Bearer <token>" and stores the
// verified identity in the request context.
func (g *Gateway) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || strings.TrimSpace(token) == "" {
			fail(w, common.ErrorUnauthorized)
			return
		}

		id, err := g.issuer.Verify(strings.TrimSpace(token))
		if err != nil {
			fail(w, common.ErrorUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// Require admits the request when the caller holds any of perms. It must
// run after Authenticate.
func (g *Gateway) Require(perms ...rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				fail(w, common.ErrorUnauthorized)
				return
			}

			held, err := g.perms.Permissions(r.Context(), id.Roles)
			if err != nil {
				fail(w, err)
				return
			}
			if !held.HasAny(perms...) {
				fail(w, common.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
