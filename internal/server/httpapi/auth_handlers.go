package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/homedock/internal/server/services"
)

// register handles POST /auth/register
func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decode(w, r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}

	s, err := a.users.Register(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSession(s))
}

// login handles POST /auth/login
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName string `json:"username"`
		Password string `json:"password"`
	}
	if err := decode(w, r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}

	s, err := a.users.Login(r.Context(), req.UserName, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSession(s))
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refresh handles POST /auth/refresh
func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}

	pair, err := a.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokensJSON{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// logout handles POST /auth/logout. It succeeds for unknown or missing
// tokens.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req, true); err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.users.Logout(r.Context(), req.RefreshToken); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out")
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	p, err := a.users.Me(r.Context(), identity(r).ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        toUser(p.User),
		"permissions": p.Permissions,
	})
}

func (a *API) updateMe(w http.ResponseWriter, r *http.Request) {
	var req services.ProfileInput
	if err := decode(w, r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}

	u, err := a.users.UpdateProfile(r.Context(), identity(r).ID, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(u))
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	var req services.PasswordChange
	if err := decode(w, r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.users.ChangePassword(r.Context(), identity(r).ID, req); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "password changed, all sessions revoked")
}
