package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/homedock/internal/server/services"
	"github.com/gorilla/mux"
)

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.ListUsers(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(users, toUser))
}

// setUserRoles handles PUT /users/{id}/roles
func (a *API) setUserRoles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Roles []string `json:"roles"`
	}
	if err := decode(w, r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}

	u, err := a.users.SetRoles(r.Context(), mux.Vars(r)["id"], req.Roles)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(u))
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.roles.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(roles, toRole))
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	var req services.RoleInput
	if err := decode(w, r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}

	role, err := a.roles.Create(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRole(role))
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request) {
	var req services.RoleUpdate
	if err := decode(w, r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}

	role, err := a.roles.Update(r.Context(), mux.Vars(r)["name"], req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRole(role))
}

func (a *API) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := a.roles.Delete(r.Context(), mux.Vars(r)["name"]); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
