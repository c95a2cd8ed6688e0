package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgettracker/internal/core"
	"budgettracker/internal/log"
	authmw "budgettracker/internal/middleware/auth"
	"budgettracker/internal/middleware/ratelimit"
	"budgettracker/internal/middleware/security"
	"budgettracker/internal/middleware/trace"
	"budgettracker/internal/services"
)

// UserService is what the user routes need from the service layer.
type UserService interface {
	List(ctx context.Context) ([]core.User, error)
	Get(ctx context.Context, id int64) (core.User, error)
	Create(ctx context.Context, nu core.NewUser) (core.User, error)
	Signup(ctx context.Context, nu core.NewUser) (core.User, error)
	Update(ctx context.Context, id int64, upd core.UserUpdate) (core.User, error)
	Delete(ctx context.Context, id int64) error
	Login(ctx context.Context, username, password string) (services.LoginResult, error)
}

type BudgetService interface {
	AddEntry(ctx context.Context, req core.EntryRequest) (core.LineItem, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr           string
	CORSOrigin     string
	LoginRateLimit int
}

type Deps struct {
	Users   UserService
	Budgets BudgetService
	Tokens  authmw.Verifier
	DB      Pinger
	Logger  *log.Logger
}

// PublicPaths are reachable without a bearer token.
var PublicPaths = authmw.AllowList{
	authmw.Exact("/status"),
	authmw.Exact("/healthz"),
	authmw.Exact("/readyz"),
	authmw.Exact("/users/login"),
	authmw.Exact("/users/signup"),
	authmw.Subtree("/api-docs"),
}

type Server struct {
	http.Server
	users    UserService
	budgets  BudgetService
	db       Pinger
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware and returns a ready-to-run server.
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		users:    deps.Users,
		budgets:  deps.Budgets,
		db:       deps.DB,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{Requests: cfg.LoginRateLimit, Window: time.Minute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP, logger),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	guard := authmw.NewGuard(deps.Tokens, PublicPaths, s.reject, logger)

	var handler http.Handler = mux
	handler = guard.Middleware(handler)
	handler = security.CORS(security.DefaultCORSConfig(cfg.CORSOrigin))(handler)
	handler = detector.Middleware(logger)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError("too many attempts, try again later").Write(w)
	})
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return authmw.RequireRole(h, s.reject, core.RoleAdmin)
	}

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api-docs", s.handleAPIDocs)
	mux.HandleFunc("GET /api-docs/{rest...}", s.handleAPIDocs)

	mux.Handle("POST /users/login", limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("POST /users/signup", limited(http.HandlerFunc(s.handleSignup)))

	mux.HandleFunc("GET /users", s.handleListUsers)
	mux.Handle("PUT /users", adminOnly(s.handleCreateUser))
	mux.HandleFunc("GET /users/{id}", s.handleGetUser)
	mux.Handle("PUT /users/{id}", adminOnly(s.handleUpdateUser))
	mux.Handle("DELETE /users/{id}", authmw.RequireRole(http.HandlerFunc(s.handleDeleteUser), s.reject, core.RoleAdmin, core.RoleManager))

	mux.HandleFunc("POST /users/income", s.handleAddEntry(core.KindIncome))
	mux.HandleFunc("POST /users/expense", s.handleAddEntry(core.KindExpense))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, "authorize", err)
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
