package web

import (
	"net/http"

	"clinic-billing/internal/app"
)

// ── Suppliers ─────────────────────────────────────────────────────────────────

// listSuppliers handles GET /api/suppliers?active=true.
func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListSuppliers(r.Context(), queryBool(r, "active", true))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createSupplier handles POST /api/suppliers.
func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req app.SupplierRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateSupplier(r.Context(), actorFrom(r), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// updateSupplier handles PUT /api/suppliers/{id}.
func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.SupplierRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateSupplier(r.Context(), actorFrom(r), id, req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// deactivateSupplier handles DELETE /api/suppliers/{id} — a soft delete.
func (h *Handler) deactivateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeactivateSupplier(r.Context(), actorFrom(r), id); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Products ──────────────────────────────────────────────────────────────────

// listProducts handles GET /api/products?active=true.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListProducts(r.Context(), queryBool(r, "active", true))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createProduct handles POST /api/products.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req app.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateProduct(r.Context(), actorFrom(r), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// updateProduct handles PUT /api/products/{id}.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateProduct(r.Context(), actorFrom(r), id, req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// deactivateProduct handles DELETE /api/products/{id} — a soft delete.
func (h *Handler) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeactivateProduct(r.Context(), actorFrom(r), id); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Services ──────────────────────────────────────────────────────────────────

// listServices handles GET /api/services?active=true.
func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListServices(r.Context(), queryBool(r, "active", true))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createService handles POST /api/services.
func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	var req app.ServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateService(r.Context(), actorFrom(r), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// updateService handles PUT /api/services/{id}.
func (h *Handler) updateService(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.ServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateService(r.Context(), actorFrom(r), id, req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// deactivateService handles DELETE /api/services/{id} — a soft delete.
func (h *Handler) deactivateService(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeactivateService(r.Context(), actorFrom(r), id); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
