package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tax_analysis/internal/cache"
	"tax_analysis/internal/config"
	"tax_analysis/internal/handler"
	"tax_analysis/internal/metrics"
	"tax_analysis/internal/middleware"
	"tax_analysis/internal/repository"
	"tax_analysis/internal/service"
	"tax_analysis/internal/storage"
	"tax_analysis/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading, relying on environment variables")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCloser, err := middleware.InitLogger(cfg.Server.LogDir)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logCloser.Close()

	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database Connection ---
	dbPool, err := config.ConnectDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	if err := config.RunMigrations(ctx, dbPool); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- Optional Stats Cache ---
	var statsCache cache.StatsCache
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Printf("WARN: stats cache disabled: %v", err)
		} else {
			statsCache = cache.NewRedisStatsCache(redisClient, cfg.Redis.StatsTTL)
			log.Printf("Stats cache enabled (ttl %v)", cfg.Redis.StatsTTL)
		}
	}

	// --- File Storage ---
	var store storage.FileStore
	if cfg.S3.Bucket != "" {
		store, err = storage.NewS3Store(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		log.Printf("Uploads will be stored in bucket: %s", cfg.S3.Bucket)
	} else {
		store, err = storage.NewLocalStore(cfg.Server.UploadsDir)
		if err != nil {
			log.Fatalf("Failed to create uploads directory %s: %v", cfg.Server.UploadsDir, err)
		}
		log.Printf("Uploads will be stored in: %s", cfg.Server.UploadsDir)
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	jwtUtil := utils.NewJWTUtil(cfg.JWT.Secret, cfg.TokenTTL())
	log.Printf("Tokens expire after %v", jwtUtil.TTL())

	// --- Initialize Repositories ---
	userRepo := repository.NewUserRepository(dbPool)
	uploadRepo := repository.NewUploadRepository(dbPool)
	analysisRepo := repository.NewAnalysisRepository(dbPool)

	// --- Initialize Services ---
	authService := service.NewAuthService(userRepo, jwtUtil, cfg.Auth.InitialAdminUsername, statsCache, recorder)
	analysisService := service.NewAnalysisService(service.AnalysisDeps{
		Users:    userRepo,
		Uploads:  uploadRepo,
		Analyses: analysisRepo,
		Store:    store,
		Cache:    statsCache,
		Metrics:  recorder,
	}, cfg.MaxUploadBytes(), cfg.FraudThreshold())
	adminService := service.NewAdminService(userRepo, statsCache)

	// --- Initialize Handlers ---
	authHandler := handler.NewAuthHandler(authService)
	analysisHandler := handler.NewAnalysisHandler(analysisService, cfg.MaxUploadBytes())
	adminHandler := handler.NewAdminHandler(adminService)

	// --- Setup Gin Router ---
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLoggerMiddleware())
	router.Use(middleware.MetricsMiddleware(recorder))

	corsOrigin := cfg.Server.CORSOrigin
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", corsOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// --- Initialize Middlewares ---
	jwtAuthMW := middleware.JWTAuthMiddleware(jwtUtil)
	adminRoleMW := middleware.AdminMiddleware()
	uploadLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimit.UploadsPerMinute, cfg.RateLimit.UploadBurst))
	defer uploadLimiter.Stop()

	// --- Register Routes ---
	api := router.Group("")
	authHandler.RegisterAuthRoutes(api, jwtAuthMW)
	analysisHandler.RegisterAnalysisRoutes(api, jwtAuthMW, uploadLimiter.Middleware(), adminRoleMW)
	adminHandler.RegisterAdminRoutes(api, jwtAuthMW, adminRoleMW)

	router.GET("/health", func(c *gin.Context) {
		if err := dbPool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))

	// --- Start Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("WARN: closing redis client: %v", err)
		}
	}

	log.Println("Server exiting")
}
