// Package httpapi exposes the identity and credential services over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/homedock/internal/logging"
	"github.com/dmitrijs2005/homedock/internal/server/auth"
	"github.com/dmitrijs2005/homedock/internal/server/metrics"
	"github.com/dmitrijs2005/homedock/internal/server/rbac"
	"github.com/dmitrijs2005/homedock/internal/server/services"
	"github.com/gorilla/mux"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Users       *services.UserService
	Roles       *services.RoleService
	Credentials *services.CredentialService
	Issuer      *auth.Issuer
	Store       Pinger
	Metrics     *metrics.Metrics
	Logger      logging.Logger
}

type API struct {
	users       *services.UserService
	roles       *services.RoleService
	credentials *services.CredentialService
	gateway     *Gateway
	store       Pinger
	metrics     *metrics.Metrics
	logger      logging.Logger
}

func New(d Deps) *API {
	return &API{
		users:       d.Users,
		roles:       d.Roles,
		credentials: d.Credentials,
		gateway:     NewGateway(d.Issuer, d.Roles),
		store:       d.Store,
		metrics:     d.Metrics,
		logger:      d.Logger.With("module", "http"),
	}
}

// Router builds the route table.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.recoverer, a.instrument)

	r.HandleFunc("/healthz", a.healthz).Methods(http.MethodGet)
	if a.metrics != nil {
		r.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/auth/register", a.register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", a.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", a.refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", a.logout).Methods(http.MethodPost)
	r.Handle("/auth/me", a.authed(a.me)).Methods(http.MethodGet)
	r.Handle("/auth/me", a.authed(a.updateMe)).Methods(http.MethodPut)
	r.Handle("/auth/me/password", a.authed(a.changePassword)).Methods(http.MethodPut)

	r.Handle("/users", a.authed(a.listUsers, rbac.UserView, rbac.UserManage)).Methods(http.MethodGet)
	r.Handle("/users/{id}/roles", a.authed(a.setUserRoles, rbac.UserManage)).Methods(http.MethodPut)

	r.Handle("/roles", a.authed(a.listRoles)).Methods(http.MethodGet)
	r.Handle("/roles", a.authed(a.createRole, rbac.RoleManage)).Methods(http.MethodPost)
	r.Handle("/roles/{name}", a.authed(a.updateRole, rbac.RoleManage)).Methods(http.MethodPut)
	r.Handle("/roles/{name}", a.authed(a.deleteRole, rbac.RoleManage)).Methods(http.MethodDelete)

	r.Handle("/credentials", a.authed(a.createCredential)).Methods(http.MethodPost)
	r.Handle("/credentials", a.authed(a.listCredentials)).Methods(http.MethodGet)
	r.Handle("/credentials/{id}", a.authed(a.getCredential)).Methods(http.MethodGet)
	r.Handle("/credentials/{id}", a.authed(a.updateCredential)).Methods(http.MethodPut)
	r.Handle("/credentials/{id}", a.authed(a.deleteCredential)).Methods(http.MethodDelete)
	r.Handle("/credentials/{id}/test", a.authed(a.testCredential)).Methods(http.MethodPost)

	return r
}

// authed wraps h with authentication and, when perms are given, a
// permission guard.
func (a *API) authed(h http.HandlerFunc, perms ...rbac.Permission) http.Handler {
	var next http.Handler = h
	if len(perms) > 0 {
		next = a.gateway.Require(perms...)(next)
	}
	return a.gateway.Authenticate(next)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.PingContext(ctx); err != nil {
		a.logger.Warn(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func identity(r *http.Request) *auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}
