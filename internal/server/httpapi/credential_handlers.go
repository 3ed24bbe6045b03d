package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/homedock/internal/server/services"
	"github.com/gorilla/mux"
)

func (a *API) createCredential(w http.ResponseWriter, r *http.Request) {
	var req services.CredentialInput
	if err := decode(w, r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}

	c, err := a.credentials.Create(r.Context(), identity(r).ID, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCredential(c))
}

func (a *API) listCredentials(w http.ResponseWriter, r *http.Request) {
	list, err := a.credentials.List(r.Context(), identity(r).ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toCredential))
}

func (a *API) getCredential(w http.ResponseWriter, r *http.Request) {
	d, err := a.credentials.Get(r.Context(), identity(r).ID, mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := toCredential(d.Credential)
	out.Data = d.Data
	writeJSON(w, http.StatusOK, out)
}

func (a *API) updateCredential(w http.ResponseWriter, r *http.Request) {
	var req services.CredentialPatch
	if err := decode(w, r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}

	c, err := a.credentials.Update(r.Context(), identity(r).ID, mux.Vars(r)["id"], req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCredential(c))
}

func (a *API) deleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := a.credentials.Delete(r.Context(), identity(r).ID, mux.Vars(r)["id"]); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// testCredential handles POST /credentials/{id}/test
func (a *API) testCredential(w http.ResponseWriter, r *http.Request) {
	res, err := a.credentials.Test(r.Context(), identity(r).ID, mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": res.Success, "message": res.Message})
}
