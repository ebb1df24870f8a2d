package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/middleware/ratelimit"
	"conti/internal/middleware/security"
	"conti/internal/middleware/trace"
	"conti/internal/query"
	"conti/internal/services"
)

type Config struct {
	Addr               string
	RateLimitPerMinute int
	PageSizes          []int
	DefaultPageSize    int
	// SearchDebounce is advertised to clients, which debounce search input.
	SearchDebounce time.Duration
}

type Deps struct {
	Groups       *services.GroupService
	Transactions *services.TransactionService
	Recurring    *services.RecurringService
	Accounts     *services.AccountService
	Goals        *services.GoalService
	Currencies   *core.CurrencyTable
	Logger       *applog.Logger
	// Ready reports whether the backing store answers; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	cfg       Config
	groups    *services.GroupService
	txs       *services.TransactionService
	recurring *services.RecurringService
	accounts  *services.AccountService
	goals     *services.GoalService
	present   presenter
	ready     func(ctx context.Context) error
	logger    *applog.Logger
	tracer    *trace.Middleware
	limiter   *ratelimit.Limiter
	started   time.Time
}

func NewServer(cfg Config, deps Deps) *Server {
	if len(cfg.PageSizes) == 0 {
		cfg.PageSizes = query.DefaultPageSizes
	}
	if cfg.DefaultPageSize == 0 {
		cfg.DefaultPageSize = query.DefaultPageSize
	}
	if cfg.SearchDebounce <= 0 {
		cfg.SearchDebounce = query.DefaultDebounce
	}
	if deps.Currencies == nil {
		deps.Currencies = core.DefaultCurrencyTable("")
	}
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		cfg:       cfg,
		groups:    deps.Groups,
		txs:       deps.Transactions,
		recurring: deps.Recurring,
		accounts:  deps.Accounts,
		goals:     deps.Goals,
		present:   presenter{currencies: deps.Currencies},
		ready:     deps.Ready,
		logger:    deps.Logger.WithComponent(applog.ComponentHTTP),
		tracer:    trace.NewMiddleware(security.ClientIP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		started:   time.Now(),
	}
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(trace.RequestID))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(withCaller)
		r.Use(s.limitWrites)

		r.Get("/config", s.handleClientConfig)
		r.Post("/splits/preview", s.handleSplitPreview)
		r.Get("/balances/overall", s.handleOverallBalance)

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.handleListGroups)
			r.Post("/", s.handleCreateGroup)

			r.Route("/{groupID}", func(r chi.Router) {
				r.Get("/", s.handleGetGroup)
				r.Get("/members", s.handleListMembers)
				r.Post("/members", s.handleAddMember)
				r.Delete("/members/{userID}", s.handleRemoveMember)
				r.Get("/balances", s.handleBalances)
				r.Get("/settle-up", s.handleSettleUp)

				r.Get("/expenses", s.handleListExpenses)
				r.Post("/expenses", s.handleCreateExpense)
				r.Get("/expenses/summary", s.handleExpenseSummary)
				r.Get("/expenses/{expenseID}", s.handleExpenseDetail)
				r.Post("/expenses/{expenseID}/settle", s.handleSettleExpense)
				r.Post("/expenses/{expenseID}/cancel", s.handleCancelExpense)
				r.Post("/expenses/{expenseID}/payments", s.handleRecordPayment)
			})
		})

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Post("/transactions/{txID}/verify", s.handleVerifyTransaction)

		r.Route("/recurring", func(r chi.Router) {
			r.Get("/", s.handleListRecurring)
			r.Post("/", s.handleCreateRecurring)
			r.Get("/{recurringID}", s.handleGetRecurring)
			r.Post("/{recurringID}/active", s.handleSetRecurringActive)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)
			r.Get("/summary", s.handleAccountSummary)
			r.Post("/transfers", s.handleTransfer)
			r.Get("/{accountID}", s.handleGetAccount)
			r.Post("/{accountID}/active", s.handleSetAccountActive)
			r.Post("/{accountID}/reconcile", s.handleReconcileAccount)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", s.handleListGoals)
			r.Post("/", s.handleCreateGoal)
			r.Get("/summary", s.handleGoalSummary)
			r.Get("/{goalID}", s.handleGetGoal)
			r.Post("/{goalID}/contributions", s.handleContributeGoal)
			r.Post("/{goalID}/status", s.handleSetGoalStatus)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no route for " + r.URL.Path).Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})
	return r
}

// limitWrites applies the per-IP rate limit to everything but reads.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(security.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

// Shutdown stops the listener and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) handleClientConfig(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(clientConfigJSON{
		PageSizes:        s.cfg.PageSizes,
		DefaultPageSize:  s.cfg.DefaultPageSize,
		SearchDebounceMS: s.cfg.SearchDebounce.Milliseconds(),
		DefaultCurrency:  s.present.currencies.Default(),
		Currencies:       s.present.currencies.Codes(),
	}).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics exposes the request and rate limit counters in text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	fmt.Fprintf(w, "conti_http_requests_total %d\n", tm.TotalRequests)
	fmt.Fprintf(w, "conti_http_server_errors_total %d\n", tm.ServerErrors)
	fmt.Fprintf(w, "conti_http_response_time_avg_microseconds %d\n", tm.AverageResponseTime)
	fmt.Fprintf(w, "conti_ratelimit_rejections_total %d\n", rm.TotalHits)
	fmt.Fprintf(w, "conti_ratelimit_clients %d\n", rm.ClientCount)
	fmt.Fprintf(w, "conti_uptime_seconds %d\n", int64(time.Since(s.started).Seconds()))
}
