package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"thermal-worker-go/internal/api/handlers"
	"thermal-worker-go/internal/api/middleware"
	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/models"
)

// Deps are the services the API reads from. Nil PTZ disables the PTZ
// routes; missing frame sources answer 503.
type Deps struct {
	Gate     handlers.GateStatusProvider
	Listener handlers.ListenerStatusProvider
	Events   handlers.EventStore
	Frames   map[models.StreamName]handlers.FrameSource
	Streams  []handlers.StreamStatsProvider
	PTZ      handlers.PTZController
}

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server
	health *HealthReporter

	healthHandler  *handlers.HealthHandler
	systemHandler  *handlers.SystemHandler
	eventsHandler  *handlers.EventsHandler
	streamsHandler *handlers.StreamsHandler
	ptzHandler     *handlers.PTZHandler
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:         cfg,
		router:         gin.New(),
		healthHandler:  handlers.NewHealthHandler(cfg.WorkerID, cfg.Version, deps.Gate, deps.Listener),
		systemHandler:  handlers.NewSystemHandler(cfg.WorkerID, deps.Streams...),
		eventsHandler:  handlers.NewEventsHandler(deps.Events),
		streamsHandler: handlers.NewStreamsHandler(deps.Frames, cfg.MJPEGFrameInterval),
	}
	if deps.PTZ != nil {
		s.ptzHandler = handlers.NewPTZHandler(deps.PTZ)
	}
	if cfg.GRPCHealthPort > 0 {
		s.health = NewHealthReporter(deps.Listener, cfg.HealthCheckInterval)
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.Liveness)
	s.router.GET("/health", s.healthHandler.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	events := s.router.Group("/events")
	{
		events.GET("", s.eventsHandler.ListEvents)
		events.GET("/:id", s.eventsHandler.GetEvent)
		events.GET("/:id/files/:name", s.eventsHandler.GetEventFile)
	}
	s.router.GET("/export/events.xlsx", s.eventsHandler.ExportEvents)

	streams := s.router.Group("/streams/:name")
	{
		streams.GET("/frame", s.streamsHandler.GetLatestFrame)
		streams.GET("/mjpeg", s.streamsHandler.StreamMJPEG)
	}

	if s.ptzHandler != nil {
		ptz := s.router.Group("/ptz")
		{
			ptz.GET("/position", s.ptzHandler.GetPosition)
			ptz.POST("/goto", s.ptzHandler.Goto)
		}
	}

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP and, when configured, the gRPC health service. It blocks
// until the HTTP server stops.
func (s *Server) Start(ctx context.Context) error {
	if s.health != nil {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.GRPCHealthPort))
		if err != nil {
			return fmt.Errorf("listen grpc health: %w", err)
		}
		go s.health.Run(ctx)
		go func() {
			if err := s.health.Serve(lis); err != nil {
				log.Error().Err(err).Msg("gRPC health server stopped")
			}
		}()
		log.Info().Int("port", s.config.GRPCHealthPort).Msg("gRPC health service started")
	}

	log.Info().Int("port", s.config.Port).Msg("Starting thermal worker API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping thermal worker API")
	if s.health != nil {
		s.health.Stop()
	}
	return s.server.Shutdown(ctx)
}
