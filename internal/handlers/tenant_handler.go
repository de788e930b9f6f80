package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quaero/internal/tenant"
)

// TenantHandler serves the language-agnostic Tenant API described in spec
// §6: search, fetch, browse_tree, sync/trigger, sync/status, and the
// registry-wide tenants/status view.
type TenantHandler struct {
	registry *tenant.Registry
	logger   arbor.ILogger
}

// NewTenantHandler wires a TenantHandler against the shared registry.
func NewTenantHandler(registry *tenant.Registry, logger arbor.ILogger) *TenantHandler {
	return &TenantHandler{registry: registry, logger: logger}
}

func (h *TenantHandler) resolve(w http.ResponseWriter, r *http.Request) (*tenant.Runtime, bool) {
	codename := r.URL.Query().Get("tenant")
	rt, err := h.registry.Resolve(codename)
	if err != nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return nil, false
	}
	return rt, true
}

// Search handles `search(tenant, query, max_results=20, word_match=false)`.
func (h *TenantHandler) Search(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.resolve(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("query")
	maxResults := 20
	if v := r.URL.Query().Get("max_results"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxResults = n
		}
	}
	wordMatch := r.URL.Query().Get("word_match") == "true"

	resp, err := rt.Search(r.Context(), query, maxResults, wordMatch)
	if err != nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"results": []tenant.SearchResult{}, "total_results": 0, "query": query, "error": err.Error(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"results":       resp.Results,
		"total_results": len(resp.Results),
		"query":         query,
	})
}

// Fetch handles `fetch(tenant, uri, context)`.
func (h *TenantHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.resolve(w, r)
	if !ok {
		return
	}

	uri := r.URL.Query().Get("uri")
	fetchCtx := tenant.FetchContext(r.URL.Query().Get("context"))
	if fetchCtx == "" {
		fetchCtx = tenant.FetchFull
	}

	resp, err := rt.Fetch(uri, fetchCtx)
	if err != nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"url": uri, "error": "Document not found"})
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// BrowseTree handles `browse_tree(tenant, path, depth)`.
func (h *TenantHandler) BrowseTree(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.resolve(w, r)
	if !ok {
		return
	}

	path := r.URL.Query().Get("path")
	depth := 2
	if v := r.URL.Query().Get("depth"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			depth = n
		}
	}

	node, err := rt.BrowseTree(path, depth)
	if err != nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"root_path": path, "depth": depth, "error": err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"root_path": path, "depth": depth, "nodes": node.Children})
}

// TriggerSync handles `sync/trigger(tenant, force_crawler?, force_full_sync?)`.
func (h *TenantHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if rt.Scheduler == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"success": false, "message": "tenant has no scheduler configured"})
		return
	}

	forceCrawler := r.URL.Query().Get("force_crawler") == "true"
	forceFullSync := r.URL.Query().Get("force_full_sync") == "true"

	if err := rt.Scheduler.TriggerSync(forceCrawler, forceFullSync); err != nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"success": false, "message": err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "sync triggered"})
}

// SyncStatus handles `sync/status(tenant)`.
func (h *TenantHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if rt.Scheduler == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"scheduler_initialized": false, "scheduler_running": false})
		return
	}

	stats := rt.Scheduler.Stats()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"scheduler_initialized": stats.IsInitialized,
		"scheduler_running":     stats.Running,
		"stats": map[string]interface{}{
			"state":      stats.State,
			"errors":     stats.Errors,
			"last_run":   stats.LastRun,
			"last_error": stats.LastError,
		},
	})
}

// TenantsStatus handles `tenants/status` — aggregated health across the
// registry.
func (h *TenantHandler) TenantsStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{"tenants": h.registry.HealthSnapshot()})
}

// decodeJSONBody is a small helper for POST endpoints that accept a JSON
// body instead of query parameters.
func decodeJSONBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
