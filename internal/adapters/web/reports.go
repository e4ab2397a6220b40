package web

import "net/http"

// revenueSummary handles GET /api/reports/revenue?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Empty bounds mean today.
func (h *Handler) revenueSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := h.svc.GetRevenueSummary(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

// outstandingInvoices handles GET /api/reports/outstanding.
func (h *Handler) outstandingInvoices(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetOutstandingInvoices(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// supplierBalances handles GET /api/reports/supplier-balances.
func (h *Handler) supplierBalances(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetSupplierBalances(r.Context())
	if err != nil {
		writeCoreError(w, r, err)
		return
	}
	writeJSON(w, result)
}
