package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/llmgateway/proxycore/internal/bootstrap"
	"github.com/llmgateway/proxycore/internal/config"
	"github.com/llmgateway/proxycore/internal/httpapi"
	"github.com/llmgateway/proxycore/internal/logging"
	"github.com/llmgateway/proxycore/pkg/domain"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(1)
	}

	logging.Configure(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		var authErr *domain.AuthenticationError
		if errors.As(err, &authErr) {
			log.Error().Err(err).Msg("backend credential error")
			os.Exit(2)
		}
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}

	router := httpapi.NewRouter(sys.Deps, cfg.Server.RequestTimeout)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Info().Str("addr", addr).Msg("proxyd listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := sys.Cleanup(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("cleanup failed")
	}
}
