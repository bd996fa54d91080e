package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
	"github.com/ariefcatur/go-kitchen-orders/internal/woo"
)

type StoreView struct {
	StoreURL          string `json:"storeUrl"`
	StoreName         string `json:"storeName"`
	ConsumerKey       string `json:"consumerKey"`
	PreferredCategory string `json:"preferredCategory,omitempty"`
}

type SettingsResp struct {
	Configured bool              `json:"configured"`
	Store      *StoreView        `json:"store,omitempty"`
	Webhook    *settings.Webhook `json:"webhook,omitempty"`
}

type CategoryReq struct {
	PreferredCategory string `json:"preferredCategory"`
}

// maskKey keeps only the last four characters.
func maskKey(k string) string {
	if len(k) <= 4 {
		return strings.Repeat("*", len(k))
	}
	return strings.Repeat("*", len(k)-4) + k[len(k)-4:]
}

func (a *API) getSettings(w http.ResponseWriter, r *http.Request) {
	var resp SettingsResp
	s, err := a.Settings.Store(r.Context())
	switch {
	case err == nil:
		resp.Configured = true
		resp.Store = &StoreView{
			StoreURL:          s.StoreURL,
			StoreName:         woo.StoreName(s),
			ConsumerKey:       maskKey(s.ConsumerKey),
			PreferredCategory: s.PreferredCategory,
		}
	case !errors.Is(err, settings.ErrNotConfigured):
		a.writeErr(w, r, err)
		return
	}
	wh, err := a.Settings.Webhook(r.Context())
	switch {
	case err == nil:
		resp.Webhook = &wh
	case !errors.Is(err, settings.ErrNotConfigured):
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// saveStore verifies the credentials against the store before saving. An
// empty secret keeps the saved one.
func (a *API) saveStore(w http.ResponseWriter, r *http.Request) {
	var req settings.Store
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ConsumerSecret) == "" {
		if cur, err := a.Settings.Store(r.Context()); err == nil {
			req.ConsumerSecret = cur.ConsumerSecret
		}
	}
	err := a.Settings.SaveStore(r.Context(), req)
	var ae *woo.APIError
	if errors.As(err, &ae) && ae.StatusCode >= 400 && ae.StatusCode < 500 {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "store rejected the credentials: " + ae.Error()})
		return
	}
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	a.Log.Info("store settings saved", "store", woo.StoreName(req))
	a.getSettings(w, r)
}

func (a *API) setCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Settings.SetPreferredCategory(r.Context(), req.PreferredCategory); err != nil {
		a.writeErr(w, r, err)
		return
	}
	a.getSettings(w, r)
}

func (a *API) saveWebhook(w http.ResponseWriter, r *http.Request) {
	var req settings.Webhook
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Settings.SaveWebhook(r.Context(), req); err != nil {
		a.writeErr(w, r, err)
		return
	}
	a.getSettings(w, r)
}
