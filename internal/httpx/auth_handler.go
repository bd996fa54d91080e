package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-kitchen-orders/internal/auth"
)

type LoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResp struct {
	Token     string    `json:"token"`
	User      auth.User `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := a.Users.Verify(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		a.Log.Warn("login rejected", "username", req.Username, "ip", clientIP(r))
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	tok, s, err := a.Issuer.Issue(u)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	a.Log.Info("login", "username", u.Username, "role", u.Role, "session_id", s.ID)
	writeJSON(w, http.StatusOK, LoginResp{Token: tok, User: u, ExpiresAt: s.ExpiresAt})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	s, _ := auth.FromContext(r.Context())
	if err := auth.Logout(r.Context(), a.Revoker, s); err != nil {
		a.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	s, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, s)
}
