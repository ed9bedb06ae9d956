package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/noahpengding/peng-finance/internal/api/handlers"
	"github.com/noahpengding/peng-finance/internal/api/middleware"
	"github.com/noahpengding/peng-finance/internal/auth"
	"github.com/noahpengding/peng-finance/internal/category"
	"github.com/noahpengding/peng-finance/internal/config"
	"github.com/noahpengding/peng-finance/internal/currency"
	"github.com/noahpengding/peng-finance/internal/dedup"
	"github.com/noahpengding/peng-finance/internal/jobs"
	"github.com/noahpengding/peng-finance/internal/jobs/inmemory"
	"github.com/noahpengding/peng-finance/internal/logger"
	"github.com/noahpengding/peng-finance/internal/mapping"
	"github.com/noahpengding/peng-finance/internal/objectstore"
	"github.com/noahpengding/peng-finance/internal/pipeline"
	"github.com/noahpengding/peng-finance/internal/snapshot"
	"github.com/noahpengding/peng-finance/internal/store/postgres"
)

func main() {
	port := flag.String("port", "8080", "HTTP server port")
	flag.Parse()

	log := logger.New()
	cfg := config.Load()

	ctx := context.Background()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()
	storage := postgres.NewStorage(pool)

	objects := objectstore.NewGCSStore(cfg.Bucket)
	snapshots := snapshot.NewService(storage, storage, storage, storage, objects, cfg.SnapshotPrefix)

	// Sync queue: mutating endpoints enqueue, the in-process worker pushes
	// snapshots in the background.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.SyncQueueSize, 2, cfg.SyncMaxRetries, jobStore)

	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		syncJob, ok := job.(*jobs.SyncJob)
		if ok {
			log.Info().
				Str("job_id", syncJob.JobID).
				Str("reason", syncJob.Reason).
				Msg("Processing sync job")
		}
		return snapshots.Sync(ctx)
	}

	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// Services.
	rates := currency.NewAPIRates(cfg.RateAPIURL, cfg.BaseCurrency, cfg.RateCacheTTL)
	normalizer := currency.NewNormalizer(cfg.BaseCurrency, rates)
	mappingSvc := mapping.NewService(storage)
	categorySvc := category.NewService(storage, storage, jobQueue)
	dedupSvc := dedup.NewService(storage, jobQueue)
	authSvc := auth.NewService(storage)
	importer := pipeline.NewImporter(
		mappingSvc, categorySvc, normalizer, storage,
		objects, cfg.UploadPrefix, jobQueue,
	)

	// Handlers.
	importsHandler := handlers.NewImportsHandler(importer, log)
	mappingsHandler := handlers.NewMappingsHandler(mappingSvc, jobQueue, log)
	transactionsHandler := handlers.NewTransactionsHandler(storage, dedupSvc, log)
	categoriesHandler := handlers.NewCategoriesHandler(categorySvc, log)
	usersHandler := handlers.NewUsersHandler(authSvc, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/imports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importsHandler.Import(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/mappings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			mappingsHandler.GetMappings(w, r)
		case http.MethodPut:
			mappingsHandler.SaveMappings(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			mappingsHandler.ListAccounts(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/dedupe", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			transactionsHandler.Deduplicate(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/uncategorized", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			categoriesHandler.ListUncategorized(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			categoriesHandler.ListCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories/assign", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			categoriesHandler.AssignCategory(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			usersHandler.CreateUser(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			usersHandler.Login(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	public := map[string]bool{
		"/health":    true,
		"/api/users": true,
		"/api/login": true,
	}

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(authSvc, public)(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
