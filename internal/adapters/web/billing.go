package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clinic-billing/internal/app"
	"clinic-billing/internal/core"
	"clinic-billing/internal/metrics"
)

// countStockRejection feeds the stock rejection counter when invoice
// creation fails on stock.
func countStockRejection(err error) {
	if errors.Is(err, core.ErrInsufficientStock) {
		metrics.StockRejections.Inc()
	}
}

// createInvoice handles POST /api/invoices.
func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req app.CreateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateInvoice(r.Context(), actorFrom(r), req)
	if err != nil {
		countStockRejection(err)
		writeCoreError(w, r, err)
		return
	}
	metrics.InvoicesCreated.Inc()
	writeJSONStatus(w, http.StatusCreated, result)
}

// getInvoice handles GET /api/invoices/{ref}. The reference is a numeric ID
// or a public invoice number like INV-240115-0001.
func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetInvoice(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// listInvoices handles GET /api/invoices with optional patient_id, status,
// date_from, date_to, limit, and offset query parameters.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.ListInvoices(r.Context(), app.ListInvoicesRequest{
		PatientID: queryInt(r, "patient_id"),
		Status:    q.Get("status"),
		DateFrom:  q.Get("date_from"),
		DateTo:    q.Get("date_to"),
		Limit:     queryInt(r, "limit"),
		Offset:    queryInt(r, "offset"),
	})
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// voidInvoice handles POST /api/invoices/{ref}/void.
func (h *Handler) voidInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	// The reason body is optional.
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.VoidInvoice(r.Context(), actorFrom(r), chi.URLParam(r, "ref"), req.Reason); err != nil {
		writeCoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listInvoicePayments handles GET /api/invoices/{ref}/payments.
func (h *Handler) listInvoicePayments(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.svc.GetInvoice(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	result, err := h.svc.ListInvoicePayments(r.Context(), invoice.Invoice.ID)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// recordPayment handles POST /api/invoices/{ref}/payments. The invoice in
// the path wins over any invoice_id in the body.
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.svc.GetInvoice(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	var req app.RecordPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.InvoiceID = invoice.Invoice.ID
	result, err := h.svc.RecordPayment(r.Context(), actorFrom(r), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	metrics.PaymentsRecorded.Inc()
	writeJSONStatus(w, http.StatusCreated, result)
}

// issueRefund handles POST /api/payments/{id}/refunds.
func (h *Handler) issueRefund(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req app.IssueRefundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PaymentID = paymentID
	result, err := h.svc.IssueRefund(r.Context(), actorFrom(r), req)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	metrics.RefundsIssued.Inc()
	writeJSONStatus(w, http.StatusCreated, result)
}

// patientBalance handles GET /api/patients/{id}/balance.
func (h *Handler) patientBalance(w http.ResponseWriter, r *http.Request) {
	patientID, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetPatientBalance(r.Context(), patientID)
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}
