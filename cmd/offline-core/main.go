package main

// @title           Offline Core API
// @version         1.0
// @description     Offline cache and sync sidecar for ERP dashboards. Offline Core keeps a local copy of backend collections, queues mutations made while disconnected, and replays them when connectivity returns.

// @contact.name   Ledgerline OSS
// @contact.url    https://github.com/ledgerline/offline-core/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ledgerline/offline-core/internal/adapters/driven/auth"
	"github.com/ledgerline/offline-core/internal/adapters/driven/notify"
	"github.com/ledgerline/offline-core/internal/adapters/driven/postgres"
	"github.com/ledgerline/offline-core/internal/adapters/driven/probe"
	redisadapter "github.com/ledgerline/offline-core/internal/adapters/driven/redis"
	"github.com/ledgerline/offline-core/internal/adapters/driven/rest"
	"github.com/ledgerline/offline-core/internal/adapters/driven/secrets"
	"github.com/ledgerline/offline-core/internal/adapters/driven/sqlite"
	"github.com/ledgerline/offline-core/internal/adapters/driving/http"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
	"github.com/ledgerline/offline-core/internal/core/services"
	"github.com/ledgerline/offline-core/internal/worker"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	// Get run mode from environment (RUN_MODE) or command line arg
	mode := getEnv("RUN_MODE", "all")
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	log.Printf("offline-core %s starting in %s mode", version, mode)

	// Configuration from environment
	jwtSecret := getEnv("JWT_SECRET", "development-secret-change-in-production")
	clientSecret := getEnv("CLIENT_SECRET", "")
	port := getEnvInt("PORT", 8080)
	databaseURL := getEnv("DATABASE_URL", "offline-core.db")
	redisURL := getEnv("REDIS_URL", "")
	apiBaseURL := getEnv("API_BASE_URL", "http://localhost:3000/api/v1")
	apiToken := getEnv("API_TOKEN", "")
	offlineSecret := getEnv("OFFLINE_SECRET", "")

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== At-rest encryption (optional) =====
	var encryptor *secrets.Encryptor
	if offlineSecret != "" {
		key := secrets.DeriveKey(offlineSecret, getEnv("OFFLINE_SECRET_SALT", "offline-core"))
		enc, err := secrets.NewEncryptor(key)
		if err != nil {
			log.Fatalf("Failed to create encryptor: %v", err)
		}
		encryptor = enc
		log.Println("At-rest encryption enabled")
	}

	// ===== Cache database (SQLite file by default, PostgreSQL by URL) =====
	var (
		entityStore    driven.EntityStore
		operationStore driven.OperationStore
		metadataStore  driven.MetadataStore
		dbPinger       http.Pinger
	)
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		log.Println("Connecting to PostgreSQL...")
		dbConfig := postgres.Config{
			URL:             databaseURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300)) * time.Second,
			ConnMaxIdleTime: time.Duration(getEnvInt("DB_CONN_MAX_IDLE_SEC", 60)) * time.Second,
		}
		db, err := postgres.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		// Initialize schema (idempotent)
		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		log.Println("PostgreSQL connected and schema initialized")

		entityStore = postgres.NewEntityStore(db, encryptor)
		operationStore = postgres.NewOperationStore(db, encryptor)
		metadataStore = postgres.NewMetadataStore(db)
		dbPinger = db
	} else {
		log.Printf("Opening SQLite cache at %s...", databaseURL)
		db, err := sqlite.Connect(ctx, sqlite.DefaultConfig(databaseURL))
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()

		if err := db.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		log.Println("SQLite cache opened and schema initialized")

		entityStore = sqlite.NewEntityStore(db, encryptor)
		operationStore = sqlite.NewOperationStore(db, encryptor)
		metadataStore = sqlite.NewMetadataStore(db)
		dbPinger = db
	}

	// ===== Redis (optional, for multi-instance sync locking) =====
	var redisClient *redis.Client
	if redisURL != "" {
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	var syncLock driven.SyncLock
	var lockPinger http.Pinger
	if redisClient != nil {
		lock := redisadapter.NewLock(redisClient)
		syncLock = lock
		lockPinger = lock
		log.Println("Using Redis sync lock")
	} else {
		log.Println("No Redis configured, sync lock is in-process only")
	}

	// ===== Driven adapters (infrastructure) =====
	authAdapter := auth.NewAdapter(jwtSecret)

	gateway := rest.NewGateway(rest.Config{
		BaseURL:  apiBaseURL,
		Token:    apiToken,
		Timeout:  time.Duration(getEnvInt("API_TIMEOUT_SEC", 15)) * time.Second,
		PageSize: getEnvInt("API_PAGE_SIZE", 100),
		Logger:   slog.Default(),
	})

	connectivity := probe.NewConnectivity(probe.Config{
		URL:    getEnv("PROBE_URL", apiBaseURL+"/health"),
		Logger: slog.Default(),
	})

	notifier := notify.NewSlogNotifier(slog.Default())

	// Services (core business logic)
	cacheService := services.NewCacheService(services.CacheServiceConfig{
		EntityStore:    entityStore,
		OperationStore: operationStore,
		MetadataStore:  metadataStore,
		Gateway:        gateway,
		Connectivity:   connectivity,
		Notifier:       notifier,
		Logger:         slog.Default(),
	})
	syncService := services.NewSyncService(services.SyncServiceConfig{
		OperationStore: operationStore,
		EntityStore:    entityStore,
		MetadataStore:  metadataStore,
		Gateway:        gateway,
		Connectivity:   connectivity,
		Notifier:       notifier,
		Lock:           syncLock,
		Logger:         slog.Default(),
	})

	// A crash mid-sync leaves metadata stuck in "syncing"; reset it before
	// serving requests so the dashboard sees an honest status.
	if err := cacheService.RecoverStaleSync(ctx); err != nil {
		log.Printf("Warning: stale sync recovery failed: %v", err)
	}

	switch mode {
	case "api":
		// API-only mode: HTTP server, no background worker
		runAPI(port, clientSecret, cacheService, syncService, authAdapter, dbPinger, lockPinger)

	case "worker":
		// Worker-only mode: connectivity probing and cache maintenance, no HTTP server
		runWorkerMode(ctx, cacheService, syncService, connectivity)

	case "all":
		// Combined mode: Run both API and Worker
		// Start worker in background
		go runWorkerMode(ctx, cacheService, syncService, connectivity)
		// Run API in foreground (blocks)
		runAPI(port, clientSecret, cacheService, syncService, authAdapter, dbPinger, lockPinger)

	default:
		log.Fatalf("Unknown mode: %s (use: api, worker, or all)", mode)
	}
}

func runAPI(
	port int,
	clientSecret string,
	cacheService *services.CacheService,
	syncService *services.SyncService,
	authAdapter *auth.Adapter,
	dbPinger http.Pinger,
	lockPinger http.Pinger,
) {
	cfg := http.DefaultConfig()
	cfg.Port = port
	cfg.Version = version
	cfg.ClientSecret = clientSecret
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	server := http.NewServer(
		cfg,
		cacheService,
		syncService,
		authAdapter,
		authAdapter,
		dbPinger,
		lockPinger,
	)

	log.Printf("API server starting on :%d", port)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runWorkerMode starts the background worker.
// It probes backend connectivity, replays the queue on reconnect, and runs
// periodic cache maintenance.
func runWorkerMode(
	ctx context.Context,
	cacheService *services.CacheService,
	syncService *services.SyncService,
	connectivity driven.Connectivity,
) {
	log.Println("Starting worker mode...")

	w := worker.New(worker.Config{
		Cache:           cacheService,
		Sync:            syncService,
		Connectivity:    connectivity,
		Logger:          slog.Default(),
		ProbeInterval:   time.Duration(getEnvInt("WORKER_PROBE_INTERVAL_SEC", 15)) * time.Second,
		PreloadInterval: time.Duration(getEnvInt("WORKER_PRELOAD_INTERVAL_SEC", 3600)) * time.Second,
		CleanupInterval: time.Duration(getEnvInt("WORKER_CLEANUP_INTERVAL_SEC", 86400)) * time.Second,
	})

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Worker started")
	log.Println("Worker handles:")
	log.Println("  - connectivity probing and queue replay on reconnect")
	log.Println("  - periodic collection preload")
	log.Println("  - tombstone, stale temp-id and failed-operation cleanup")

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	log.Println("Stopping worker...")
	w.Stop()
	w.Wait()
	log.Println("Worker stopped")
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
