package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Flows
	mux.Handle("POST /api/v1/flows", chain(http.HandlerFunc(h.CreateFlow)))
	mux.Handle("GET /api/v1/flows/{id}", chain(http.HandlerFunc(h.GetFlow)))
	mux.Handle("POST /api/v1/flows/{id}/run", chain(http.HandlerFunc(h.RunFlow)))
	mux.Handle("POST /api/v1/flows/{id}/stop", chain(http.HandlerFunc(h.StopFlow)))
	mux.Handle("DELETE /api/v1/flows/{id}", chain(http.HandlerFunc(h.DeleteFlow)))

	// Tasks
	mux.Handle("GET /api/v1/flows/{id}/tasks/{task_id}", chain(http.HandlerFunc(h.GetTaskStatus)))
	mux.Handle("POST /api/v1/flows/{id}/tasks/{task_id}/restart", chain(http.HandlerFunc(h.RestartTask)))

	// Deposits
	mux.Handle("GET /api/v1/deposits/{deposit_id}/flow", chain(http.HandlerFunc(h.GetDepositFlow)))
	mux.Handle("GET /api/v1/deposits/{deposit_id}/status", chain(http.HandlerFunc(h.GetDepositStatus)))
}
