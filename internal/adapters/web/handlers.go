package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinic-billing/internal/app"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API (401 JSON if unauthenticated) ───────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// Auth / users
		r.Get("/api/auth/me", h.me)
		r.Post("/api/users", h.createUser)

		// Catalog
		r.Get("/api/suppliers", h.listSuppliers)
		r.Post("/api/suppliers", h.createSupplier)
		r.Put("/api/suppliers/{id}", h.updateSupplier)
		r.Delete("/api/suppliers/{id}", h.deactivateSupplier)
		r.Get("/api/suppliers/{id}/credits", h.listSupplierCredits)
		r.Get("/api/products", h.listProducts)
		r.Post("/api/products", h.createProduct)
		r.Put("/api/products/{id}", h.updateProduct)
		r.Delete("/api/products/{id}", h.deactivateProduct)
		r.Get("/api/services", h.listServices)
		r.Post("/api/services", h.createService)
		r.Put("/api/services/{id}", h.updateService)
		r.Delete("/api/services/{id}", h.deactivateService)

		// Inventory
		r.Get("/api/stock", h.stockLevels)
		r.Get("/api/stock/low", h.lowStock)
		r.Get("/api/stock/adjustments", h.listAdjustments)
		r.Post("/api/stock/adjustments", h.adjustStock)

		// Billing
		r.Get("/api/invoices", h.listInvoices)
		r.Post("/api/invoices", h.createInvoice)
		r.Get("/api/invoices/{ref}", h.getInvoice)
		r.Post("/api/invoices/{ref}/void", h.voidInvoice)
		r.Get("/api/invoices/{ref}/payments", h.listInvoicePayments)
		r.Post("/api/invoices/{ref}/payments", h.recordPayment)
		r.Post("/api/payments/{id}/refunds", h.issueRefund)
		r.Get("/api/patients/{id}/balance", h.patientBalance)

		// Purchasing
		r.Get("/api/purchase-orders", h.listPurchaseOrders)
		r.Post("/api/purchase-orders", h.createPurchaseOrder)
		r.Get("/api/purchase-orders/{id}", h.getPurchaseOrder)
		r.Post("/api/purchase-orders/{id}/receive", h.receivePurchaseOrder)
		r.Post("/api/purchase-orders/{id}/return", h.returnStock)
		r.Post("/api/purchase-orders/{id}/cancel", h.cancelPurchaseOrder)
		r.Post("/api/purchase-orders/{id}/payments", h.recordSupplierPayment)
		r.Post("/api/purchase-returns/{id}/refund", h.recordSupplierRefund)
		r.Post("/api/supplier-credits/apply", h.applySupplierCredit)

		// Reports
		r.Get("/api/reports/revenue", h.revenueSummary)
		r.Get("/api/reports/outstanding", h.outstandingInvoices)
		r.Get("/api/reports/supplier-balances", h.supplierBalances)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// idParam extracts a positive integer URL parameter; writes 400 and returns
// false when it is missing or malformed.
func idParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name+" parameter", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryBool reads a boolean query parameter, defaulting to def when absent.
func queryBool(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// queryInt reads an integer query parameter, defaulting to 0 when absent or
// malformed.
func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
