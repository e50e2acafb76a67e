package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/meridianbank/backoffice/docs"
	"github.com/meridianbank/backoffice/internal/database"
	"github.com/meridianbank/backoffice/internal/metrics"
	mW "github.com/meridianbank/backoffice/internal/middleware"
	"github.com/meridianbank/backoffice/internal/services"
)

// @title Meridian Bank Back-Office API
// @version 1.0
// @description Client, account and movement posting API
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("posting.daily_debit_limit", "POSTING_DAILY_DEBIT_LIMIT")
	viper.BindEnv("posting.max_attempts", "POSTING_MAX_ATTEMPTS")
	viper.BindEnv("posting.tx_timeout", "POSTING_TX_TIMEOUT")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Meridian Bank Back-Office API"
	docs.SwaggerInfo.Description = "Client, account and movement posting API"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry, err := metrics.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	postingService := services.NewPostingService(db, redisClient)
	movementService := services.NewMovementService(db, postingService)
	accountService := services.NewAccountService(db)
	clientService := services.NewClientService(db)
	reportService := services.NewReportService(db)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
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
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Prometheus metrics
	r.Handle("/metrics", metrics.Handler(registry))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/movements", movementService.CreateMovement)
		r.Get("/movements/day", movementService.GetDayMovements)
		r.Get("/movements/{movementId}", movementService.GetMovement)
		r.Put("/movements/{movementId}", movementService.UpdateMovementDate)

		r.Get("/reports", reportService.GetMovementsReport)

		r.Post("/accounts", accountService.CreateAccount)
		r.Get("/accounts/{accountId}", accountService.GetAccount)
		r.Put("/accounts/{accountId}", accountService.UpdateAccount)
		r.Patch("/accounts/{accountId}", accountService.PatchAccount)
		r.Delete("/accounts/{accountId}", accountService.DeleteAccount)
		r.Get("/accounts/{accountId}/balance", accountService.AccountBalanceEnquiry)

		r.Post("/clients", clientService.CreateClient)
		r.Get("/clients/{clientId}", clientService.GetClient)
		r.Put("/clients/{clientId}", clientService.UpdateClient)
		r.Delete("/clients/{clientId}", clientService.DeleteClient)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

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
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
