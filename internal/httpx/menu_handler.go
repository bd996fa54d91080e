package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
)

type StockReq struct {
	StockStatus orders.StockStatus `json:"stock_status"`
}

func (a *API) listMenu(w http.ResponseWriter, r *http.Request) {
	ps, err := a.Menu.Menu(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (a *API) setStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return
	}
	var req StockReq
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := a.Menu.SetStock(r.Context(), id, req.StockStatus)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := a.Menu.Categories(r.Context())
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cs))
}
