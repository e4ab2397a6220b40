package web

import (
	"net/http"

	"clinic-billing/internal/app"
)

// stockLevels handles GET /api/stock.
func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockLevels(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// lowStock handles GET /api/stock/low — the restock worklist.
func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetLowStock(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// adjustStock handles POST /api/stock/adjustments.
func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req app.AdjustStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.AdjustStock(r.Context(), actorFrom(r), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// listAdjustments handles GET /api/stock/adjustments?product_id=N.
func (h *Handler) listAdjustments(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListAdjustments(r.Context(), queryInt(r, "product_id"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}
