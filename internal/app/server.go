package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"forumsync/internal/config"
	"forumsync/internal/model"
	"forumsync/internal/repository"
	"forumsync/internal/service"
	"forumsync/internal/util"
	"forumsync/internal/websocket"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Server is the assembled backend: storage, services, event hub and router.
type Server struct {
	cfg          *config.Config
	log          *logrus.Logger
	hub          *websocket.Hub
	reportWorker *service.ReportWorker
	handler      http.Handler
	closers      []func() error
}

// NewServer wires the backend for cfg.StoreDriver. Redis and RabbitMQ are
// optional; when they are unreachable the server runs without caching and
// without the moderation queue.
func NewServer(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Server, error) {
	s := &Server{cfg: cfg, log: log}

	var (
		commentRepo  repository.CommentRepository
		reactionRepo repository.ReactionRepository
		reportRepo   repository.ReportRepository
	)

	switch cfg.StoreDriver {
	case "postgres":
		db, err := initDB(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.AutoMigrate(&model.Comment{}, &model.Reaction{}, &model.Report{}); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			s.closers = append(s.closers, sqlDB.Close)
		}

		var redisClient *util.RedisClient
		if cfg.RedisEnabled() {
			redisClient = initRedisWithRetry(ctx, cfg, log)
			if redisClient != nil {
				s.closers = append(s.closers, redisClient.Close)
			}
		}

		commentRepo = repository.NewCommentRepository(db, redisClient)
		reactionRepo = repository.NewReactionRepository(db, redisClient)
		reportRepo = repository.NewReportRepository(db)
	default:
		store := repository.NewMemoryStore()
		commentRepo = store.Comments()
		reactionRepo = store.Reactions()
		reportRepo = store.Reports()
		log.Info("Using in-memory comment store")
	}

	// Initialize WebSocket hub
	s.hub = websocket.NewHub(log)

	var publisher service.ReportPublisher
	if cfg.RabbitMQURL != "" {
		if rabbitMQ := initRabbitMQWithRetry(ctx, cfg, log); rabbitMQ != nil {
			s.closers = append(s.closers, rabbitMQ.Close)
			if err := rabbitMQ.DeclareExchange(service.ReportExchange); err != nil {
				log.WithError(err).Warn("Failed to declare report exchange; reports will not be queued")
			} else {
				publisher = rabbitMQ
				s.reportWorker = service.NewReportWorker(rabbitMQ, log)
			}
		}
	}

	svc := Services{
		Comments:  service.NewCommentService(commentRepo, s.hub, log),
		Reactions: service.NewReactionService(reactionRepo, commentRepo),
		Reports:   service.NewReportService(reportRepo, commentRepo, publisher, log),
	}
	s.handler = NewRouter(cfg, svc, s.hub, log)
	return s, nil
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)
	s.log.Info("WebSocket hub started")

	if s.reportWorker != nil {
		if err := s.reportWorker.Start(); err != nil {
			s.log.WithError(err).Warn("Failed to start report worker")
		} else {
			s.log.Info("Report worker started")
			defer s.reportWorker.Stop()
		}
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(s.cfg.ServerHost, s.cfg.ServerPort),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Server starting on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases database, cache and broker connections.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.WithError(err).Warn("close failed")
		}
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = "host=" + cfg.PostgresHost +
			" port=" + cfg.PostgresPort +
			" user=" + cfg.PostgresUser +
			" password=" + cfg.PostgresPassword +
			" dbname=" + cfg.PostgresDB +
			" sslmode=" + cfg.PostgresSSLMode
	}

	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		// Surfaces unique violations as gorm.ErrDuplicatedKey for report dedup.
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

// retry runs connect with exponential backoff until it succeeds, the attempts
// run out or ctx is done.
func retry[T any](ctx context.Context, log logrus.FieldLogger, name string, connect func() (T, error)) (T, bool) {
	const maxRetries = 5
	initialDelay := 2 * time.Second
	maxDelay := 30 * time.Second

	var zero T
	for attempt := 1; attempt <= maxRetries; attempt++ {
		v, err := connect()
		if err == nil {
			log.Infof("%s connected successfully on attempt %d", name, attempt)
			return v, true
		}

		if attempt == maxRetries {
			log.Warnf("Failed to connect to %s after %d attempts: %v. Continuing without it.", name, maxRetries, err)
			break
		}

		// Calculate delay with exponential backoff
		delay := initialDelay * time.Duration(1<<uint(attempt-1))
		if delay > maxDelay {
			delay = maxDelay
		}
		log.Warnf("Failed to connect to %s (attempt %d/%d): %v. Retrying in %v...", name, attempt, maxRetries, err, delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, false
		}
	}
	return zero, false
}

// initRedisWithRetry attempts to connect to Redis with exponential backoff retry
func initRedisWithRetry(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) *util.RedisClient {
	client, _ := retry(ctx, log, "Redis", func() (*util.RedisClient, error) {
		return util.NewRedisClient(ctx, cfg)
	})
	return client
}

// initRabbitMQWithRetry attempts to connect to RabbitMQ with exponential backoff retry
func initRabbitMQWithRetry(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) *util.RabbitMQClient {
	client, _ := retry(ctx, log, "RabbitMQ", func() (*util.RabbitMQClient, error) {
		return util.NewRabbitMQClient(cfg.RabbitMQURL)
	})
	return client
}
