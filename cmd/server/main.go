package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mantrailing/cardservice/docs"
	"github.com/mantrailing/cardservice/internal/audit"
	"github.com/mantrailing/cardservice/internal/authz"
	"github.com/mantrailing/cardservice/internal/config"
	"github.com/mantrailing/cardservice/internal/database"
	"github.com/mantrailing/cardservice/internal/handlers"
	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/logging"
	"github.com/mantrailing/cardservice/internal/metrics"
	mW "github.com/mantrailing/cardservice/internal/middleware"
	"github.com/mantrailing/cardservice/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Mantrailing Card API
// @version 1.0
// @description Prepaid training cards, balance bookings and training progression for a mantrailing school
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	config.Load()
	logging.Configure()
	log := logging.Component("server")

	if viper.GetString("jwt.secret_key") == "" {
		log.Fatal("JWT_SECRET_KEY must be set")
	}

	docs.SwaggerInfo.Host = viper.GetString("server.public_host")
	if docs.SwaggerInfo.Host == "" {
		docs.SwaggerInfo.Host = "localhost:" + viper.GetString("server.port")
	}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	clock := ledger.SystemClock
	ledgerCfg := config.LoadLedgerConfig()
	auditLogger := audit.NewLogger(clock)
	policy := authz.NewRolePolicy()

	ledgerService := services.NewLedgerService(db, redisClient, ledger.New(ledgerCfg, ledger.WithClock(clock)), auditLogger)
	transactionService := services.NewTransactionService(db, policy)
	customerService := services.NewCustomerService(db, ledgerCfg, clock, auditLogger)
	reportService := services.NewReportService(db, clock)
	dashboardService := services.NewDashboardService(db, clock)
	authService := services.NewAuthService(db, redisClient, clock)
	userService := services.NewUserService(db, clock, auditLogger)
	qrHandler := handlers.NewQRHandler(services.NewCardQRService(db, redisClient, clock, viper.GetDuration("qr.ttl")))

	if err := userService.EnsureAdmin(context.Background(),
		viper.GetString("auth.admin_email"), viper.GetString("auth.admin_password")); err != nil {
		log.WithError(err).Fatal("Failed to create bootstrap admin")
	}

	// Initialize auth middleware with the users table and Redis
	mW.InitAuthMiddleware(db, redisClient)
	allow := func(action authz.Action) func(http.Handler) http.Handler {
		return mW.Require(policy, action)
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := db.PingContext(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":   status,
			"redis":    redisClient != nil,
			"database": code == http.StatusOK,
		})
	})

	r.Handle("/metrics", metrics.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/login", authService.Login)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/auth/logout", authService.Logout)
			r.Get("/auth/me", authService.Me)

			r.With(allow(authz.DashboardRead)).Get("/dashboard", dashboardService.GetDashboard)

			// Customers
			r.With(allow(authz.CustomerList)).Get("/customers", customerService.List)
			r.With(allow(authz.CustomerCreate)).Post("/customers", customerService.Register)
			r.Route("/customers/{id}", func(r chi.Router) {
				r.With(allow(authz.CustomerRead)).Get("/", customerService.Get)
				r.With(allow(authz.CustomerUpdate)).Patch("/", customerService.Update)

				r.With(allow(authz.TransactionRead)).Get("/transactions", transactionService.ListByCustomer)
				r.With(allow(authz.TransactionCreate)).Post("/transactions", ledgerService.CreateTransaction)

				r.With(allow(authz.CardQR)).Get("/card/qr", qrHandler.GetCardQR)
			})

			r.With(allow(authz.TransactionRead)).Get("/transactions/{txId}", transactionService.Get)
			r.With(allow(authz.CardResolve)).Post("/cards/resolve", qrHandler.ResolveCard)
			r.With(allow(authz.ReportRead)).Get("/reports/summary", reportService.GetSummary)

			// User administration
			r.Group(func(r chi.Router) {
				r.Use(allow(authz.UserManage))
				r.Get("/users", userService.ListUsers)
				r.Post("/users", userService.CreateUser)
				r.Patch("/users/{userId}/role", userService.UpdateRole)
				r.Delete("/users/{userId}", userService.DeleteUser)
			})
		})
	})

	port := viper.GetString("server.port")

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.WithField("port", port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}

	log.Info("Server stopped")
}
