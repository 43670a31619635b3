package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cropscan/apiserver/config"
	"github.com/cropscan/apiserver/internal/db"
	"github.com/cropscan/apiserver/internal/handlers"
	"github.com/cropscan/apiserver/internal/inference"
	"github.com/cropscan/apiserver/internal/metrics"
	"github.com/cropscan/apiserver/internal/mq"
	"github.com/cropscan/apiserver/internal/services"
	"github.com/cropscan/apiserver/internal/storage"
	"github.com/cropscan/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	shutdownTimeout = 10 * time.Second
	// handlerSlack covers reading the upload and recording the scan around the upstream call.
	handlerSlack = 10 * time.Second
	writeSlack   = 5 * time.Second
)

// requestTimeouts derives the per-request handler deadline and the server write
// timeout from the inference timeout. The handler deadline expires first so a
// slow upstream still gets an answer written.
func requestTimeouts(upstream time.Duration) (handler, write time.Duration) {
	handler = upstream + handlerSlack
	return handler, handler + writeSlack
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger
	db         *sql.DB
	mongo      *db.Mongo
	mq         *mq.MQ
}

type repositories struct {
	users services.UserRepository
	scans services.ScanRepository
}

// New wires the configured backends and builds the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{logger: logger}

	repos, err := s.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := inference.New(cfg.Inference.URL, cfg.Inference.Timeout)
	if err != nil {
		s.closeBackends()
		return nil, err
	}

	archive, err := storage.NewFromConfig(ctx, cfg.Archive)
	if err != nil {
		s.closeBackends()
		return nil, fmt.Errorf("init upload archive: %w", err)
	}

	s.mq, err = mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		s.closeBackends()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	scanOpts := []services.ScanOption{services.WithScanLogger(logger)}
	predictionOpts := []services.PredictionOption{services.WithPredictionLogger(logger)}
	if archive != nil {
		if err := archive.EnsureBucket(ctx); err != nil {
			logger.Warn("ensure archive bucket", "bucket", archive.Bucket(), "error", err)
		}
		predictionOpts = append(predictionOpts, services.WithUploadArchive(archive))
		logger.Info("upload archive enabled", "backend", cfg.Archive.Backend, "bucket", archive.Bucket())
	}
	if s.mq != nil {
		scanOpts = append(scanOpts, services.WithScanEvents(s.mq, cfg.MQ.ScansChannel))
		predictionOpts = append(predictionOpts, services.WithPredictionEvents(s.mq, cfg.MQ.PredictionsChannel))
		logger.Info("event publishing enabled", "backend", cfg.MQ.Backend)
	}

	userService := services.NewUserService(repos.users)
	scanService := services.NewScanService(repos.scans, scanOpts...)
	predictionService := services.NewPredictionService(client, predictionOpts...)

	if cfg.Auth.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET is not set; DELETE /api/scans is open to any caller")
	}

	handlerTimeout, writeTimeout := requestTimeouts(client.Timeout())
	m := metrics.New()
	predictHandler := handlers.NewPredictionHandler(predictionService, cfg.Inference.MaxUploadBytes, m, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		m.Middleware,
		middleware.Timeout(handlerTimeout),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", m.Handler())
	router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, cfg.Auth, logger)
		})
		r.Route("/predict", func(r chi.Router) {
			handlers.PredictRouter(r, predictHandler, cfg.HTTP.PredictRateLimit, cfg.HTTP.PredictRateBurst)
		})
		r.Route("/scans", func(r chi.Router) {
			handlers.ScanRouter(r, scanService, handlers.RequireAdmin(cfg.Auth.AdminJWTSecret), logger)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openStore(ctx context.Context, cfg config.Config) (repositories, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMongo, "":
		conn, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return repositories{}, err
		}
		s.mongo = conn

		users := store.NewMongoUserRepository(conn.Database.Collection(cfg.Mongo.UsersCollection))
		scans := store.NewMongoScanRepository(conn.Database.Collection(cfg.Mongo.ScansCollection))
		if err := users.EnsureIndexes(ctx); err != nil {
			// Legacy data may already hold duplicate emails; the lookup still guards new ones.
			s.logger.Warn("ensure user indexes", "error", err)
		}
		if err := scans.EnsureIndexes(ctx); err != nil {
			s.logger.Warn("ensure scan indexes", "error", err)
		}
		s.logger.Info("using mongo store", "database", cfg.Mongo.Database)
		return repositories{users: users, scans: scans}, nil
	case config.StoreBackendPostgres:
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return repositories{}, err
		}
		s.db = conn
		s.logger.Info("using postgres store", "host", cfg.Database.Host, "database", cfg.Database.DBName)
		return repositories{users: store.NewUserRepository(conn), scans: store.NewScanRepository(conn)}, nil
	case config.StoreBackendMemory:
		s.logger.Warn("using in-memory store; data is lost on restart")
		return repositories{users: store.NewMemoryUserRepository(), scans: store.NewMemoryScanRepository()}, nil
	default:
		return repositories{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Router exposes the chi router for route registration and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases backend connections.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.closeBackends()
	return err
}

func (s *Server) closeBackends() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.logger.Warn("close message queue", "error", err)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.mongo.Close(ctx); err != nil {
			s.logger.Warn("close mongo", "error", err)
		}
	}
}
