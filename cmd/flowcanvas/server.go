package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/api/handlers"
	"github.com/BaSui01/flowcanvas/client"
	"github.com/BaSui01/flowcanvas/config"
	"github.com/BaSui01/flowcanvas/execution"
	"github.com/BaSui01/flowcanvas/internal/database"
	"github.com/BaSui01/flowcanvas/internal/metrics"
	"github.com/BaSui01/flowcanvas/internal/server"
	"github.com/BaSui01/flowcanvas/internal/telemetry"
	"github.com/BaSui01/flowcanvas/persistence"
)

// Server wires the graph store, HTTP surface and observability into
// one process.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager      *server.Manager
	metricsCollector *metrics.Collector
	store            persistence.GraphStore
	dbPool           *database.PoolManager
	otelProviders    *telemetry.Providers
}

// NewServer creates an unstarted server.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// Start opens the store and begins serving without blocking.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("flowcanvas", prometheus.DefaultRegisterer, s.logger)

	if err := s.initStore(); err != nil {
		return fmt.Errorf("failed to init graph store: %w", err)
	}

	var fetcher execution.Fetcher
	if s.cfg.Engine.BaseURL != "" {
		fetcher = client.NewEngineClient(s.cfg.Engine.BaseURL, s.cfg.Engine.Timeout)
		s.logger.Info("execution engine configured", zap.String("base_url", s.cfg.Engine.BaseURL))
	} else {
		s.logger.Info("no execution engine configured, execution endpoints disabled")
	}

	router := handlers.NewRouter(handlers.RouterOptions{
		Store:          s.store,
		Fetcher:        fetcher,
		Mode:           execution.Mode(s.cfg.Poll.Mode),
		StreamInterval: s.cfg.Poll.StreamInterval,
		Metrics:        s.metricsCollector,
		Auth: handlers.AuthConfig{
			Enabled:   s.cfg.Auth.Enabled,
			Secret:    s.cfg.Auth.Secret,
			Issuer:    s.cfg.Auth.Issuer,
			Audience:  s.cfg.Auth.Audience,
			SkipPaths: s.cfg.Auth.SkipPaths,
		},
		Version: Version,
		Logger:  s.logger,
	})

	s.httpManager = server.NewManager(router, server.Config{
		Addr:            fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.ReadTimeout * 4,
		MaxHeaderBytes:  1 << 20,
		MaxConns:        s.cfg.Server.MaxConns,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("FlowCanvas serving",
		zap.String("addr", s.httpManager.Addr()),
		zap.String("store", s.cfg.Store.Type),
		zap.Bool("auth", s.cfg.Auth.Enabled),
	)

	return nil
}

// initStore builds the configured persistence backend. The gorm
// backend goes through the managed connection pool.
func (s *Server) initStore() error {
	if s.cfg.Store.Type == "gorm" {
		pool := database.DefaultPoolConfig()
		pool.MaxOpenConns = s.cfg.Database.MaxOpenConns
		pool.MaxIdleConns = s.cfg.Database.MaxIdleConns
		pool.ConnMaxLifetime = s.cfg.Database.ConnMaxLifetime

		pm, err := database.Open(s.cfg.Database, pool, s.logger)
		if err != nil {
			return err
		}
		s.dbPool = pm

		store, err := persistence.NewGormGraphStoreWithDB(pm.DB())
		if err != nil {
			pm.Close()
			return err
		}
		s.store = store
		return nil
	}

	store, err := persistence.NewGraphStore(s.storeConfig())
	if err != nil {
		return err
	}
	s.store = store
	return nil
}

func (s *Server) storeConfig() persistence.StoreConfig {
	return persistence.StoreConfig{
		Type:    persistence.StoreType(s.cfg.Store.Type),
		BaseDir: s.cfg.Store.BaseDir,
		Redis: persistence.RedisStoreConfig{
			Host:      s.cfg.Redis.Host,
			Port:      s.cfg.Redis.Port,
			Password:  s.cfg.Redis.Password,
			DB:        s.cfg.Redis.DB,
			PoolSize:  s.cfg.Redis.PoolSize,
			KeyPrefix: s.cfg.Redis.KeyPrefix,
		},
		Database: persistence.DatabaseStoreConfig{
			Dialect: s.cfg.Database.Driver,
			DSN:     s.cfg.Database.DSN(),
		},
		Mongo: persistence.MongoStoreConfig{
			URI:        s.cfg.Mongo.URI,
			Database:   s.cfg.Mongo.Database,
			Collection: s.cfg.Mongo.Collection,
		},
	}
}

// WaitForShutdown blocks until the HTTP server stops, then releases
// the store, database pool and telemetry providers.
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close graph store", zap.Error(err))
		}
	}
	if s.dbPool != nil {
		if err := s.dbPool.Close(); err != nil {
			s.logger.Error("failed to close database pool", zap.Error(err))
		}
	}
	if s.otelProviders != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
}
