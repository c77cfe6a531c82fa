package router

import (
	"net/http"
	"time"

	"account-service/internal/handlers"
	"account-service/internal/middleware"
	"account-service/internal/permission"
	"account-service/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Options struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

type Deps struct {
	Auth   *services.AuthService
	Users  *services.UserService
	Tokens middleware.AccessValidator
	Health *handlers.HealthHandler
}

// SetupRouter wires the routes. CORS wraps the whole router so preflight
// requests are answered even though no route matches OPTIONS.
func SetupRouter(deps Deps, opts Options, logger zerolog.Logger) http.Handler {
	authHandler := handlers.NewAuthHandler(deps.Auth, logger)
	userHandler := handlers.NewUserHandler(deps.Users, logger)

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst)

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.PerformanceMonitoring(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(rateLimiter.Middleware())
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.Use(middleware.RequestValidation())
	auth.HandleFunc("/register", authHandler.Register).Methods("POST")
	auth.HandleFunc("/login", authHandler.Login).Methods("POST")
	auth.HandleFunc("/token/refresh", authHandler.Refresh).Methods("POST")
	auth.HandleFunc("/password-reset", authHandler.PasswordReset).Methods("POST")
	auth.HandleFunc("/password-reset-confirm", authHandler.PasswordResetConfirm).Methods("POST")

	protected := auth.PathPrefix("").Subrouter()
	protected.Use(middleware.Authentication(deps.Tokens, logger))
	protected.Handle("/logout", guard(permission.ActionLogout, authHandler.Logout)).Methods("POST")
	protected.Handle("/change-password", guard(permission.ActionPasswordChange, authHandler.ChangePassword)).Methods("PUT")
	protected.HandleFunc("/profile", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/profile", userHandler.UpdateProfile).Methods("PUT", "PATCH")
	protected.Handle("/users/me", guard(permission.ActionMe, userHandler.Me)).Methods("GET")
	protected.Handle("/users", guard(permission.ActionUserList, userHandler.GetUsers)).Methods("GET")
	protected.Handle("/user/{id:[0-9]+}", guard(permission.ActionUserView, userHandler.GetUser)).Methods("GET")
	protected.Handle("/user/{id:[0-9]+}", guard(permission.ActionUserEdit, userHandler.UpdateUser)).Methods("PUT", "PATCH")
	protected.Handle("/user/{id:[0-9]+}", guard(permission.ActionUserDelete, userHandler.DeleteUser)).Methods("DELETE")

	r.HandleFunc("/health", deps.Health.Health).Methods("GET")

	return middleware.CORS(opts.CORSOrigins)(r)
}

func guard(action permission.Action, h http.HandlerFunc) http.Handler {
	return middleware.RequirePermission(action)(h)
}
