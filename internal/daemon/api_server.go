package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"clipper/internal/api"
	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/upload"
	"clipper/internal/workflow"
)

type apiServer struct {
	bind   string
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, wf *workflow.Manager, up api.Uploader, logger *slog.Logger) *apiServer {
	service, err := upload.ParseService(cfg.Upload.DefaultService)
	if err != nil {
		service = upload.ServiceCatbox
	}
	handler := api.NewHandler(wf, up, api.Options{
		AllowedOrigins: cfg.API.AllowedOrigins,
		Token:          cfg.API.Token,
		DefaultService: service,
		Logger:         logger,
	})
	return &apiServer{
		bind:   cfg.API.Bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Long-poll event requests wait up to 30s before writing.
			WriteTimeout: 45 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
