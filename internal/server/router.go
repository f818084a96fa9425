package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/audit"
	authh "github.com/rayaadinda/kp-inventory/internal/handlers/auth"
	"github.com/rayaadinda/kp-inventory/internal/handlers/inventory"
	"github.com/rayaadinda/kp-inventory/internal/handlers/reports"
	"github.com/rayaadinda/kp-inventory/internal/response"
	"github.com/rayaadinda/kp-inventory/internal/store"
)

// withID adapts a handler that takes the {id} route variable.
func withID(fn func(http.ResponseWriter, *http.Request, string)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, mux.Vars(r)["id"])
	})
}

// Router builds the full handler chain: CORS, logging, tracing, security
// headers, rate limiting and gzip around the mux routes.
func (a *App) Router() http.Handler {
	log := a.Log
	if log == nil {
		log = zap.NewNop()
	}
	if a.Limiter == nil {
		a.Limiter = NewRateLimiter()
	}
	if a.RateLimit <= 0 {
		a.RateLimit = 100
	}
	if a.RateWindow <= 0 {
		a.RateWindow = time.Minute
	}
	items := store.NewItemRepository(a.DB)
	checkouts := store.NewCheckoutRepository(a.DB)

	inv := &inventory.Handler{
		DB:             a.DB,
		Items:          items,
		Checkouts:      checkouts,
		Hub:            a.Hub,
		Events:         a.Events,
		Log:            log,
		GetCurrentUser: UserFrom,
	}
	login := &authh.Handler{
		DB:             a.DB,
		Users:          store.NewUserRepository(a.DB),
		Tokens:         a.Tokens,
		Log:            log,
		GetCurrentUser: UserFrom,
	}
	rep := &reports.Handler{
		DB:             a.DB,
		Checkouts:      checkouts,
		Log:            log,
		GetCurrentUser: UserFrom,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", login.HandleLogin).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(RequireAuth(a.Tokens))
	protected.HandleFunc("/auth/me", login.HandleMe).Methods(http.MethodGet)
	protected.HandleFunc("/inventory", inv.ListInventory).Methods(http.MethodGet)
	protected.HandleFunc("/inventory", inv.CreateItem).Methods(http.MethodPost)
	protected.HandleFunc("/inventory/checkout", inv.Checkout).Methods(http.MethodPost)
	protected.HandleFunc("/inventory/checkout-history", inv.CheckoutHistory).Methods(http.MethodGet)
	protected.HandleFunc("/inventory/checkout-history/export", rep.ExportHistory).Methods(http.MethodGet)
	protected.Handle("/inventory/{id}", withID(inv.UpdateItem)).Methods(http.MethodPut)
	protected.Handle("/inventory/{id}", RequireAdmin(withID(inv.DeleteItem))).Methods(http.MethodDelete)
	protected.Handle("/audit", RequireAdmin(http.HandlerFunc(a.listAudit))).Methods(http.MethodGet)
	if a.Hub != nil {
		protected.Handle("/ws", a.Hub).Methods(http.MethodGet)
	}

	var h http.Handler = GzipMiddleware(r)
	h = RateLimitMiddleware(a.Limiter, a.RateLimit, a.RateWindow)(h)
	h = SecurityHeaders(h)
	h = TracingMiddleware(h)
	h = LoggingMiddleware(log)(h)

	c := cors.New(cors.Options{
		AllowedOrigins:   a.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "traceparent", "tracestate"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Remaining", "Content-Disposition"},
		AllowCredentials: true,
	})
	return c.Handler(h)
}

// listAudit handles GET /api/audit.
func (a *App) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := audit.List(r.Context(), a.DB, r.URL.Query().Get("module"), limit)
	if err != nil {
		response.Err(w, "failed to load audit log", 500)
		return
	}
	response.JSON(w, entries)
}
