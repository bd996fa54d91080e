package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-kitchen-orders/internal/auth"
	"github.com/ariefcatur/go-kitchen-orders/internal/errlog"
	"github.com/ariefcatur/go-kitchen-orders/internal/inventory"
	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/poller"
	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
	"github.com/ariefcatur/go-kitchen-orders/internal/storesocket"
	"github.com/ariefcatur/go-kitchen-orders/internal/webhook"
	"github.com/ariefcatur/go-kitchen-orders/internal/woo"
)

// RequestTimeout bounds every request, including the store calls it makes.
const RequestTimeout = 30 * time.Second

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Snapshots is the polled order list. *poller.Poller implements it.
type Snapshots interface {
	Snapshot() poller.Snapshot
	Invalidate()
}

// API holds everything the staff endpoints need. ErrorLog and Socket are
// optional.
type API struct {
	Users     *auth.Table
	Issuer    *auth.Issuer
	Revoker   auth.Revoker
	Limiter   *LoginLimiter
	Orders    Snapshots
	Workflows *orders.Workflows
	View      orders.ViewModel
	Menu      *inventory.Service
	Settings  *settings.Provider
	Chat      *webhook.Client
	ErrorLog  *errlog.File
	Socket    *storesocket.Manager
	Log       *slog.Logger
}

func (a *API) Register(r *chi.Mux) {
	if a.Log == nil {
		a.Log = slog.Default()
	}
	if a.Limiter == nil {
		a.Limiter = NewLoginLimiter(DefaultLoginRate, DefaultLoginBurst)
	}

	r.With(a.Limiter.Middleware).Post("/auth/login", a.login)

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(a.Issuer, a.Revoker, a.Log))
		r.Use(actor)

		r.Post("/auth/logout", a.logout)
		r.Get("/auth/me", a.me)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", a.listOrders)
			r.Post("/", a.createOrder)
			r.Get("/kitchen", a.kitchenOrders)
			r.Get("/badge", a.pendingBadge)
			r.Get("/dates", a.dateChoices)
			r.Get("/slots", a.deliverySlots)
			r.Post("/refresh", a.refreshOrders)
			r.Get("/{id}", a.getOrder)
			r.Put("/{id}", a.editOrder)
			r.Post("/{id}/accept", a.acceptOrder)
			r.Put("/{id}/status", a.changeStatus)
		})

		r.Get("/menu", a.listMenu)
		r.Put("/menu/{id}/stock", a.setStock)
		r.Get("/categories", a.listCategories)

		r.Get("/settings", a.getSettings)
		r.Put("/settings/category", a.setCategory)
		r.With(auth.RequireRole(auth.RoleOwner)).Put("/settings/store", a.saveStore)
		r.With(auth.RequireRole(auth.RoleOwner)).Put("/settings/webhook", a.saveWebhook)

		r.Post("/chat", a.chat)

		r.Get("/errorlog", a.readErrorLog)
		r.With(auth.RequireRole(auth.RoleOwner)).Delete("/errorlog", a.clearErrorLog)

		r.Get("/socket", a.socketStatus)
		r.Post("/socket/connect", a.socketConnect)
		r.Post("/socket/disconnect", a.socketDisconnect)
	})
}

// actor copies the session user into the context seen by the workflows.
func actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := auth.FromContext(r.Context()); ok {
			r = r.WithContext(orders.WithActor(r.Context(), s.Username))
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json"})
		return false
	}
	return true
}

// writeErr maps domain and transport errors onto HTTP answers. Messages from
// the store are passed through unchanged.
func (a *API) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code, body := errorResponse(err)
	if code >= 500 {
		a.Log.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "status", code, "error", err)
	}
	writeJSON(w, code, body)
}

func errorResponse(err error) (int, errorBody) {
	var (
		de  *orders.DraftError
		ae  *woo.APIError
		ne  *woo.NetworkError
		wse *webhook.StatusError
	)
	switch {
	case errors.Is(err, settings.ErrNotConfigured):
		return http.StatusPreconditionFailed, errorBody{Error: settings.ErrNotConfigured.Error()}
	case errors.Is(err, orders.ErrNoCategory):
		return http.StatusPreconditionFailed, errorBody{Error: err.Error()}
	case errors.As(err, &de):
		return http.StatusUnprocessableEntity, errorBody{Error: orders.ErrInvalidDraft.Error(), Fields: de.Fields}
	case errors.Is(err, settings.ErrInvalid), errors.Is(err, orders.ErrInvalidDraft):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error()}
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, orders.ErrUpdateFailed):
		return http.StatusBadGateway, errorBody{Error: orders.ErrUpdateFailed.Error()}
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrNoProducts):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.As(err, &ae):
		return http.StatusBadGateway, errorBody{Error: ae.Error()}
	case errors.As(err, &ne):
		return http.StatusServiceUnavailable, errorBody{Error: "store unreachable"}
	case errors.As(err, &wse):
		return http.StatusBadGateway, errorBody{Error: "webhook: " + wse.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Error: "timeout"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}
