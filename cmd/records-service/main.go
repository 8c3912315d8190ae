package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/medishare/recordvault/internal/custody"
	"github.com/medishare/recordvault/internal/disclosure"
	"github.com/medishare/recordvault/internal/identity"
	"github.com/medishare/recordvault/pkg/anchor"
	"github.com/medishare/recordvault/pkg/config"
	"github.com/medishare/recordvault/pkg/crypto"
	"github.com/medishare/recordvault/pkg/database"
	"github.com/medishare/recordvault/pkg/interfaces"
	"github.com/medishare/recordvault/pkg/logger"
	"github.com/medishare/recordvault/pkg/monitoring"
	"github.com/medishare/recordvault/pkg/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("records-service", cfg.LogLevel)
	log.Info("Starting Records Service", "version", "1.0.0")

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.CreateSchema(ctx); err != nil {
		cancel()
		log.Error("Failed to create database schema", "error", err)
		os.Exit(1)
	}
	cancel()

	// Select the anchor backend
	var anchorClient interfaces.AnchorClient
	var ledger *anchor.Ledger
	switch cfg.Anchor.Mode {
	case "gateway":
		anchorClient = anchor.NewGatewayClient(&cfg.Anchor, log)
	default:
		ledger, err = anchor.OpenLedger(cfg.Anchor.LedgerPath, log)
		if err != nil {
			log.Error("Failed to open anchor ledger", "error", err)
			os.Exit(1)
		}
		defer ledger.Close()
		anchorClient = ledger
	}

	// Initialize identity components
	subjectRepo := identity.NewSubjectRepository(db.DB, log)
	tokenManager := identity.NewTokenManager(&cfg.JWT)
	identityService := identity.NewService(subjectRepo, tokenManager, log)
	identityHandlers := identity.NewHandlers(identityService, log)

	// Initialize custody and disclosure components
	keyCipher := crypto.NewKeyCipher(cfg.MasterKey)
	reportRepo := custody.NewReportRepository(db.DB, keyCipher, log)
	grantRepo := custody.NewGrantRepository(db.DB, log)
	storageClient := storage.NewClient(&cfg.Storage, log)

	engine := disclosure.NewEngine(
		reportRepo,
		grantRepo,
		subjectRepo,
		storageClient,
		anchorClient,
		cfg.Anchor.Strict,
		log,
	)
	disclosureHandlers := disclosure.NewHandlers(engine, subjectRepo, log)

	// Setup router
	router := mux.NewRouter()
	router.Use(metricsMiddleware)

	// Health check endpoint
	router.HandleFunc(cfg.Monitoring.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		health := "healthy"
		if err := db.Health(); err != nil {
			status = http.StatusServiceUnavailable
			health = "unhealthy"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"status":%q,"service":"records-service","timestamp":%q}`, health, time.Now().UTC().Format(time.RFC3339))
	}).Methods("GET")

	// Metrics endpoint
	if cfg.Monitoring.Enabled {
		router.Handle(cfg.Monitoring.MetricsPath, monitoring.Handler()).Methods("GET")
	}

	// Public auth routes
	api := router.PathPrefix("/api/v1").Subrouter()
	identityHandlers.RegisterRoutes(api)

	// Authenticated disclosure routes
	protected := api.NewRoute().Subrouter()
	protected.Use(tokenManager.Middleware)
	disclosureHandlers.RegisterRoutes(protected)

	// Setup HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start HTTP server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Records Service...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Records Service stopped")
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		monitoring.RecordHTTPRequest(r.Method, endpoint, rec.status, time.Since(start))
	})
}
