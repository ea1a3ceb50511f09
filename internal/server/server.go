package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/homewise/internal/auth"
	"github.com/dukerupert/homewise/internal/expense"
	"github.com/dukerupert/homewise/internal/handler"
	"github.com/dukerupert/homewise/internal/household"
	"github.com/dukerupert/homewise/internal/metrics"
	"github.com/dukerupert/homewise/internal/middleware"
	"github.com/dukerupert/homewise/internal/profile"
	ws "github.com/dukerupert/homewise/internal/websocket"
	"github.com/jmoiron/sqlx"
)

type Options struct {
	AllowedOrigins []string
	// AuthRequestsPerMinute limits sign-up, sign-in and token requests per IP.
	AuthRequestsPerMinute int
	// OnEnqueue runs after a commit that queued e-mail.
	OnEnqueue func()
}

type Server struct {
	db          *sqlx.DB
	hub         *ws.Hub
	provider    *auth.Provider
	households  *household.Service
	authH       *handler.AuthHandler
	householdH  *handler.HouseholdHandler
	expenseH    *handler.ExpenseHandler
	userH       *handler.UserHandler
	rateLimiter *middleware.RateLimiter
	opts        Options
	logger      *slog.Logger
}

func New(db *sqlx.DB, provider *auth.Provider, images profile.ImageStore, opts Options, logger *slog.Logger) *Server {
	if opts.AuthRequestsPerMinute <= 0 {
		opts.AuthRequestsPerMinute = 10
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	households := household.NewService(db, provider, hub, logger.With("component", "household"))
	households.OnEnqueue(opts.OnEnqueue)
	provider.OnEnqueue(opts.OnEnqueue)

	expenses := expense.NewService(db, logger.With("component", "expense"))
	profiles := profile.NewService(provider, images, logger.With("component", "profile"))

	return &Server{
		db:          db,
		hub:         hub,
		provider:    provider,
		households:  households,
		authH:       handler.NewAuthHandler(provider, opts.AllowedOrigins, logger.With("component", "auth")),
		householdH:  handler.NewHouseholdHandler(households, logger.With("component", "household_handler")),
		expenseH:    handler.NewExpenseHandler(expenses, logger.With("component", "expense_handler")),
		userH:       handler.NewUserHandler(profiles, logger.With("component", "user_handler")),
		rateLimiter: middleware.NewRateLimiter(opts.AuthRequestsPerMinute, time.Minute, opts.AuthRequestsPerMinute),
		opts:        opts,
		logger:      logger,
	}
}

// Hub returns the websocket hub household events are published to.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the auth rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	s.registerAuthRoutes(mux)
	s.registerHouseholdRoutes(mux)
	s.registerExpenseRoutes(mux)
	s.registerUserRoutes(mux)

	mux.Handle("GET /ws", s.protected(ws.Handler(s.hub, s.resolveRoom, s.opts.AllowedOrigins, s.logger.With("component", "websocket"))))

	var h http.Handler = mux
	h = middleware.CORS(s.opts.AllowedOrigins)(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	return metrics.InstrumentHandler(h)
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.provider)(h)
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP)(h)
}

func (s *Server) registerAuthRoutes(mux *http.ServeMux) {
	mux.Handle("POST /auth/sign-up/email", s.rateLimited(s.authH.SignUp))
	mux.Handle("POST /auth/sign-in/email", s.rateLimited(s.authH.SignIn))
	mux.HandleFunc("POST /auth/sign-out", s.authH.SignOut)
	mux.HandleFunc("GET /auth/get-session", s.authH.GetSession)
	mux.Handle("GET /auth/verify-email", s.rateLimited(s.authH.VerifyEmail))
	mux.Handle("POST /auth/one-time-token/generate", s.protected(s.authH.GenerateOneTimeToken))
	mux.Handle("POST /auth/one-time-token/verify", s.rateLimited(s.authH.VerifyOneTimeToken))
}

func (s *Server) registerHouseholdRoutes(mux *http.ServeMux) {
	mux.Handle("POST /households", s.protected(s.householdH.Create))
	mux.Handle("GET /households/my", s.protected(s.householdH.Get))
	mux.Handle("PATCH /households/my", s.protected(s.householdH.Patch))
	mux.Handle("DELETE /households/my", s.protected(s.householdH.Delete))

	mux.Handle("POST /households/my/invite", s.protected(s.householdH.Invite))
	mux.Handle("GET /households/my/invites/active", s.protected(s.householdH.ListActiveInvites))
	mux.Handle("DELETE /households/my/invites/{id}", s.protected(s.householdH.DeleteInvite))
	mux.HandleFunc("GET /households/invite", s.householdH.ReadInvite)
	mux.Handle("POST /households/invite/{id}/accept", s.protected(s.householdH.AcceptInvite))

	mux.Handle("PATCH /households/my/members/{id}", s.protected(s.householdH.PatchMember))
	mux.Handle("DELETE /households/my/members/{id}", s.protected(s.householdH.DeleteMember))
}

func (s *Server) registerExpenseRoutes(mux *http.ServeMux) {
	mux.Handle("GET /expenses", s.protected(s.expenseH.List))
	mux.Handle("POST /expenses", s.protected(s.expenseH.Create))
	mux.Handle("GET /expenses/{id}", s.protected(s.expenseH.Get))
	mux.Handle("DELETE /expenses/{id}", s.protected(s.expenseH.Delete))
}

func (s *Server) registerUserRoutes(mux *http.ServeMux) {
	mux.Handle("PATCH /users/me", s.protected(s.userH.UpdateMe))
	mux.Handle("DELETE /users/me/profile-picture", s.protected(s.userH.DeleteProfilePicture))
}

// resolveRoom puts a websocket client in its household's room.
func (s *Server) resolveRoom(ctx context.Context, sess auth.Session) (int64, bool, error) {
	m, err := s.households.Lookup(ctx, sess.UserID)
	if err != nil {
		return 0, false, err
	}
	if !m.HasHousehold() {
		return 0, false, nil
	}
	return m.Household.ID, true, nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
