package server

import "net/http"

// setupRoutes wires the Tenant API described in spec §6 onto one
// http.ServeMux.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/search", s.app.TenantHandler.Search)
	mux.HandleFunc("/fetch", s.app.TenantHandler.Fetch)
	mux.HandleFunc("/browse_tree", s.app.TenantHandler.BrowseTree)
	mux.HandleFunc("/sync/trigger", s.app.TenantHandler.TriggerSync)
	mux.HandleFunc("/sync/status", s.app.TenantHandler.SyncStatus)
	mux.HandleFunc("/sync/stream", s.handleSyncStream)
	mux.HandleFunc("/tenants/status", s.app.TenantHandler.TenantsStatus)

	// The MCP (Model Context Protocol) surface is a separate stdio binary,
	// cmd/quaero-mcp, not an HTTP route.

	mux.HandleFunc("/api/health", s.healthHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler)

	return mux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
