package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-kitchen-orders/internal/auth"
	"github.com/ariefcatur/go-kitchen-orders/internal/storesocket"
	"github.com/ariefcatur/go-kitchen-orders/internal/webhook"
)

type ChatReq struct {
	Message string `json:"message"`
	// Media is an image or voice recording as a data URI.
	Media string `json:"media,omitempty"`
}

func (a *API) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" && req.Media == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "empty message"})
		return
	}
	if req.Media != "" && !strings.HasPrefix(req.Media, "data:") {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "media must be a data URI"})
		return
	}
	var user *webhook.User
	if s, ok := auth.FromContext(r.Context()); ok {
		user = &webhook.User{Username: s.Username, Role: string(s.Role)}
	}
	reply, err := a.Chat.Send(r.Context(), req.Message, req.Media, user)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (a *API) readErrorLog(w http.ResponseWriter, r *http.Request) {
	if a.ErrorLog == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "error log disabled"})
		return
	}
	b, err := a.ErrorLog.Read()
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (a *API) clearErrorLog(w http.ResponseWriter, r *http.Request) {
	if a.ErrorLog == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "error log disabled"})
		return
	}
	if err := a.ErrorLog.Clear(); err != nil {
		a.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) socketStatus(w http.ResponseWriter, r *http.Request) {
	if a.Socket == nil {
		writeJSON(w, http.StatusOK, storesocket.Status{State: storesocket.StateDisconnected})
		return
	}
	writeJSON(w, http.StatusOK, a.Socket.Status())
}

func (a *API) socketConnect(w http.ResponseWriter, r *http.Request) {
	if a.Socket == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "store socket disabled"})
		return
	}
	err := a.Socket.Connect(r.Context())
	if err != nil && !errors.Is(err, storesocket.ErrAlreadyConnected) {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, a.Socket.Status())
}

func (a *API) socketDisconnect(w http.ResponseWriter, r *http.Request) {
	if a.Socket == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "store socket disabled"})
		return
	}
	a.Socket.Disconnect()
	writeJSON(w, http.StatusOK, a.Socket.Status())
}
