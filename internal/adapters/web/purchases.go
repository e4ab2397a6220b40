package web

import (
	"net/http"

	"clinic-billing/internal/app"
)

// listPurchaseOrders handles GET /api/purchase-orders with optional
// supplier_id, status, limit, and offset query parameters.
func (h *Handler) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPurchaseOrders(r.Context(), app.ListPurchaseOrdersRequest{
		SupplierID: queryInt(r, "supplier_id"),
		Status:     r.URL.Query().Get("status"),
		Limit:      queryInt(r, "limit"),
		Offset:     queryInt(r, "offset"),
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createPurchaseOrder handles POST /api/purchase-orders.
func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePurchaseOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreatePurchaseOrder(r.Context(), actorFrom(r), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// getPurchaseOrder handles GET /api/purchase-orders/{id}.
func (h *Handler) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// receivePurchaseOrder handles POST /api/purchase-orders/{id}/receive.
func (h *Handler) receivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ReceivePurchaseOrder(r.Context(), actorFrom(r), id)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// returnStock handles POST /api/purchase-orders/{id}/return.
func (h *Handler) returnStock(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.ReturnStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PurchaseOrderID = id
	result, err := h.svc.ReturnStock(r.Context(), actorFrom(r), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// cancelPurchaseOrder handles POST /api/purchase-orders/{id}/cancel.
func (h *Handler) cancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.CancelPurchaseOrder(r.Context(), actorFrom(r), id); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recordSupplierPayment handles POST /api/purchase-orders/{id}/payments.
func (h *Handler) recordSupplierPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.SupplierPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PurchaseOrderID = id
	result, err := h.svc.RecordSupplierPayment(r.Context(), actorFrom(r), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// recordSupplierRefund handles POST /api/purchase-returns/{id}/refund.
// The refund also issues a supplier credit; both come back in the response.
func (h *Handler) recordSupplierRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.SupplierRefundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PurchaseReturnID = id
	result, err := h.svc.RecordSupplierRefund(r.Context(), actorFrom(r), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// applySupplierCredit handles POST /api/supplier-credits/apply.
func (h *Handler) applySupplierCredit(w http.ResponseWriter, r *http.Request) {
	var req app.ApplyCreditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.ApplySupplierCredit(r.Context(), actorFrom(r), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// listSupplierCredits handles GET /api/suppliers/{id}/credits?open=true.
func (h *Handler) listSupplierCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ListSupplierCredits(r.Context(), id, queryBool(r, "open", false))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}
