package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/meter-reading-api/internal/anomaly"
	"github.com/septivank/meter-reading-api/internal/config"
	"github.com/septivank/meter-reading-api/internal/db"
	"github.com/septivank/meter-reading-api/internal/httpapi"
	"github.com/septivank/meter-reading-api/internal/mq"
	"github.com/septivank/meter-reading-api/internal/repository"
	"github.com/septivank/meter-reading-api/internal/service"
	"github.com/septivank/meter-reading-api/internal/vision"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newApp() *fx.App {
	return fx.New(
		fx.Provide(
			config.Load,
			newLogger,
			ProvideDBPool,
			ProvideRepository,
			ProvideAnomalyDetector,
			ProvideExtractor,
			ProvidePublisher,
			ProvideMeasureService,
			ProvideRouter,
		),
		fx.Invoke(runMigrations, startServer),
	)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, db.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        int32(cfg.Database.MaxConns),
		ApplicationName: cfg.ServiceName,
	})
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideAnomalyDetector creates a new anomaly detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
}

// ProvideExtractor creates the Gemini vision client
func ProvideExtractor(cfg *config.Config, logger *zap.Logger) (vision.Extractor, error) {
	client, err := vision.NewGeminiClient(context.Background(), vision.GeminiConfig{
		APIKey:            cfg.Gemini.APIKey,
		BaseURL:           cfg.Gemini.BaseURL,
		Model:             cfg.Gemini.Model,
		TimeoutSeconds:    cfg.Gemini.TimeoutSeconds,
		RequestsPerSecond: cfg.Gemini.RequestsPerSecond,
	}, logger.Named("gemini"))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ProvidePublisher connects to RabbitMQ when it is configured. Without a URL
// events are dropped.
func ProvidePublisher(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (service.EventPublisher, error) {
	if !cfg.RabbitMQ.Enabled() {
		logger.Info("RABBITMQ_URL not set, measure events are disabled")
		return mq.NopPublisher{}, nil
	}

	conn, err := mq.NewConnection(lc, logger, cfg.RabbitMQ.URL, cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	publisher, err := mq.NewPublisher(mq.PublisherConfig{
		Connection:          conn,
		Exchange:            cfg.RabbitMQ.EventsExchange,
		UploadedRoutingKey:  cfg.RabbitMQ.UploadedRoutingKey,
		ConfirmedRoutingKey: cfg.RabbitMQ.ConfirmedRoutingKey,
		Logger:              logger,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to close publisher channel", zap.Error(err))
			}
			return nil
		},
	})

	return publisher, nil
}

// ProvideMeasureService creates the measure workflow service
func ProvideMeasureService(
	repo *repository.Repository,
	extractor vision.Extractor,
	publisher service.EventPublisher,
	detector *anomaly.Detector,
	cfg *config.Config,
	logger *zap.Logger,
) *service.MeasureService {
	return service.NewMeasureService(repo, extractor, publisher, detector, service.Options{
		VisionTimeout: time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
		HistoryLimit:  cfg.Anomaly.HistoryLimit,
	}, logger)
}

// ProvideRouter creates the gin engine
func ProvideRouter(svc *service.MeasureService, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if !logger.Core().Enabled(zap.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}
	return httpapi.NewRouter(httpapi.RouterConfig{
		MeasureHandler: httpapi.NewMeasureHandler(svc, logger),
		Logger:         logger,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
}

// runMigrations applies pending migrations once the pool has reached the database
func runMigrations(lc fx.Lifecycle, _ *db.Pool, cfg *config.Config, logger *zap.Logger) {
	if !cfg.Database.AutoMigrate {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return db.Migrate(logger, cfg.Database.URL)
		},
	})
}

func startServer(lc fx.Lifecycle, router *gin.Engine, cfg *config.Config, logger *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.ServicePort)
	server := httpapi.NewServer(addr, router, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", addr, err)
			}
			logger.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down http server")
			return server.Shutdown(ctx)
		},
	})
}
