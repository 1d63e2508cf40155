// Package httpapi is the JSON-over-HTTP surface of the account system.
package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/cryptodesk/internal/logging"
	"github.com/dmitrijs2005/cryptodesk/internal/server/metrics"
	"github.com/dmitrijs2005/cryptodesk/internal/server/models"
	"github.com/dmitrijs2005/cryptodesk/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// Options are the transport-level settings.
type Options struct {
	// ExposeResetTokens echoes reset tokens from forgot-password.
	// Development only.
	ExposeResetTokens bool
	WebhookSecret     string
	CORSOrigins       []string
	RateLimitRPS      float64
	RateLimitBurst    int
}

// Services is everything the handlers call into.
type Services struct {
	Auth         *services.AuthService
	Resets       *services.ResetService
	Ledger       *services.LedgerService
	Transactions *services.TransactionService
	Reports      *services.ReportService
}

type handler struct {
	auth     *services.AuthService
	resets   *services.ResetService
	ledger   *services.LedgerService
	txs      *services.TransactionService
	reports  *services.ReportService
	metrics  *metrics.Metrics
	validate *validator.Validate
	log      logging.Logger
	opts     Options
}

// NewRouter builds the HTTP handler tree.
func NewRouter(svc Services, m *metrics.Metrics, log logging.Logger, opts Options) http.Handler {
	h := &handler{
		auth:     svc.Auth,
		resets:   svc.Resets,
		ledger:   svc.Ledger,
		txs:      svc.Transactions,
		reports:  svc.Reports,
		metrics:  m,
		validate: newValidator(),
		log:      log.With("module", "httpapi"),
		opts:     opts,
	}
	limiter := newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(m.Instrument)
	r.Use(cors(opts.CORSOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(limiter.Handler)
				r.Post("/register", h.register)
				r.Post("/login", h.login)
				r.Post("/forgot-password", h.forgotPassword)
				r.Post("/reset-password", h.resetPassword)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.requireKind(models.PrincipalUser))
				r.Post("/logout", h.logout)
				r.Get("/me", h.me)
				r.Get("/balances", h.balances)
				r.Get("/transactions", h.userTransactions)
				r.Post("/transactions", h.createUserTransaction)
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(limiter.Handler).Post("/transactions", h.createGuestTransaction)
			r.With(requireWebhookSecret(opts.WebhookSecret)).Post("/webhook", h.webhook)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(limiter.Handler).Post("/login", h.adminLogin)

			r.Group(func(r chi.Router) {
				r.Use(h.requireKind(models.PrincipalAdmin))
				r.Post("/logout", h.logout)
				r.Post("/change-password", h.adminChangePassword)
				r.Get("/users", h.adminUsers)
				r.Get("/transactions", h.adminTransactions)
				r.Get("/stats", h.adminStats)
				r.Get("/password-resets", h.adminPasswordResets)
				r.Get("/reconcile", h.adminReconcile)
				r.Post("/transactions/export", h.adminExport)
				r.Post("/transactions/{id}/paid", h.adminMarkPaid)
				r.Post("/transactions/{id}/failed", h.adminMarkFailed)
			})
		})
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
