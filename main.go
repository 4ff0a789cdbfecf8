package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/hartafolio/backend/src/config"
	"github.com/username/hartafolio/backend/src/database"
	"github.com/username/hartafolio/backend/src/handlers"
	"github.com/username/hartafolio/backend/src/logger"
	"github.com/username/hartafolio/backend/src/processors"
	"github.com/username/hartafolio/backend/src/security"
	"github.com/username/hartafolio/backend/src/services"
	"golang.org/x/time/rate"
)

// Global pre-router throttle; the per-identity sliding window sits behind it
// in the price service.
var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			config.Cfg.AllowedOrigin: true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Hartafolio backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing caches...")
	priceCache := cache.New(config.Cfg.PriceCacheTTL, 2*config.Cfg.PriceCacheTTL)
	rateCache := cache.New(15*time.Minute, 30*time.Minute)

	logger.L.Info("Initializing services and handlers...")
	identityService := security.NewIdentityService(config.Cfg.JWTSecret)
	rateLimiter := security.NewRateLimiter(config.Cfg.RateLimitMax, config.Cfg.RateLimitWindow, nil)
	defer rateLimiter.Stop()

	fetcher := services.NewSourceFetcher(config.Cfg.FetchTimeout)
	priceService := services.NewPriceService(fetcher, rateLimiter, priceCache, config.Cfg.MaxBatchPerCategory)
	rateProvider := processors.NewExchangeRateProvider(fetcher, rateCache, config.Cfg.FallbackUSDIDR)

	priceHandler := handlers.NewPriceHandler(priceService, config.Cfg.MaxBatchPerCategory)
	portfolioHandler := handlers.NewPortfolioHandler(database.DB, priceService, rateProvider)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/prices", priceHandler.HandleResolvePrices)
	apiRouter.HandleFunc("GET /api/exchange-rate", portfolioHandler.HandleGetExchangeRate)
	apiRouter.HandleFunc("POST /api/portfolio/snapshot", handlers.RequireUser(portfolioHandler.HandleCaptureSnapshot))
	apiRouter.HandleFunc("GET /api/portfolio/valuation", handlers.RequireUser(portfolioHandler.HandleGetValuation))

	identity := handlers.IdentityMiddleware(identityService)
	rootMux.Handle("/api/", identity(apiRouter))

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Hartafolio backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
