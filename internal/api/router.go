package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/Stevencedor/EasyLoans/internal/api/handler"
	mw "github.com/Stevencedor/EasyLoans/internal/api/middleware"
	"github.com/Stevencedor/EasyLoans/internal/config"
	"github.com/Stevencedor/EasyLoans/internal/domain/loan"
	"github.com/Stevencedor/EasyLoans/internal/domain/user"
)

func SetupRouter(loanService loan.LoanService, userService user.UserService, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupAuthRoutes(router, cfg, userService, logger)
	setupUserRoutes(router, cfg, userService, logger)
	setupLoanRoutes(router, loanService, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupAuthRoutes(router *chi.Mux, cfg *config.Config, userService user.UserService, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(userService, cfg.Server.Auth, logger)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
			r.Put("/password", authHandler.ChangePassword)
		})
	})
}

func setupUserRoutes(router *chi.Mux, cfg *config.Config, userService user.UserService, logger *slog.Logger) {
	userHandler := handler.NewUserHandler(userService, logger)

	router.Route("/users", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Use(mw.RequireAdmin(cfg.Server.Auth, logger))
		r.Post("/", userHandler.CreateUser)
		r.Get("/", userHandler.ListUsers)
		r.Get("/{userID}", userHandler.GetUser)
		r.Post("/{userID}/password/reset", userHandler.ResetPassword)
		r.Put("/{userID}/language", userHandler.UpdateLanguage)
	})
}

func setupLoanRoutes(router *chi.Mux, loanService loan.LoanService, cfg *config.Config, logger *slog.Logger) {
	loanHandler := handler.NewLoanHandler(loanService, logger)

	router.Route("/loans", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Get("/mine", loanHandler.ListMyLoans)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAdmin(cfg.Server.Auth, logger))
			r.Post("/", loanHandler.CreateLoan)
			r.Get("/", loanHandler.ListLoans)
		})

		r.Route("/{loanID}", func(r chi.Router) {
			r.Get("/", loanHandler.GetLoan)
			r.Get("/ledger", loanHandler.GetLedger)
			r.Get("/payments", loanHandler.ListPayments)
			r.Post("/payments/preview", loanHandler.PreviewPayment)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireAdmin(cfg.Server.Auth, logger))
				r.Post("/payments", loanHandler.RecordPayment)
			})
		})
	})
}
