package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deppfellow/case-unboxing/internal/catalog"
	"github.com/deppfellow/case-unboxing/internal/config"
	"github.com/deppfellow/case-unboxing/internal/database"
	"github.com/deppfellow/case-unboxing/internal/handler"
	"github.com/deppfellow/case-unboxing/internal/logger"
	"github.com/deppfellow/case-unboxing/internal/repository"
	"github.com/deppfellow/case-unboxing/internal/router"
	"github.com/deppfellow/case-unboxing/internal/server"
	"github.com/deppfellow/case-unboxing/internal/service"
)

const DefaultContextTimeout = 30

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService, err := logger.NewLoggerService(cfg.Observability)
	if err != nil {
		panic("failed to initialize logger service: " + err.Error())
	}
	defer loggerService.Shutdown(5 * time.Second)

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	if err := database.Migrate(context.Background(), &log, database.DSN(cfg.Database)); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	srv, err := server.New(cfg, &log, loggerService)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}

	cat, err := catalog.New(cfg.Catalog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load case catalog")
	}
	log.Info().Int("cases", cat.Len()).Msg("case catalog loaded")

	repos := repository.NewRepositories(srv)
	services := service.NewServices(srv, repos, cat)

	// In-process writes started by recent unboxes finish before the pool closes.
	srv.OnDrain(services.Unbox.Drain)

	if srv.Job != nil {
		srv.Job.InitHandlers(services.Unbox)
		go func() {
			if err := srv.Job.Start(); err != nil {
				log.Error().Err(err).Msg("job worker stopped")
			}
		}()
	}

	handlers := handler.NewHandlers(srv, services)
	r := router.NewRouter(srv, handlers)

	srv.SetupHTTPServer(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), DefaultContextTimeout*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
