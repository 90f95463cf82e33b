// Package api is the management surface of the monitor: website CRUD,
// manual check triggers, history queries and operational endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/config"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/domain"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/monitoring"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/storage"
)

// Trigger is the slice of the scheduler the server needs: queueing
// manual checks and rebuilding the job table after website edits.
type Trigger interface {
	Reschedule(ctx context.Context) error
	TriggerNow(site *domain.Website, checkType domain.CheckType) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	pgStore    *storage.PostgresStore
	redisStore *storage.RedisStore
	scheduler  Trigger
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, pg *storage.PostgresStore, rds *storage.RedisStore, sched Trigger, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	s := &Server{
		config:     cfg,
		pgStore:    pg,
		redisStore: rds,
		scheduler:  sched,
		metrics:    metrics,
		logger:     logger,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.logger.Info("starting API server", zap.String("port", s.config.ServerPort))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
