package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keygate/keygate/internal/common/logtrace"
	"github.com/keygate/keygate/internal/keysrv/config"
	"github.com/keygate/keygate/internal/keysrv/db"
	"github.com/keygate/keygate/internal/keysrv/gateway"
	"github.com/keygate/keygate/internal/keysrv/license"
	"github.com/keygate/keygate/internal/keysrv/server"
	"github.com/rs/zerolog/log"
)

type cmdoptions struct {
	configFile string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	opt := parseFlags()

	if err := config.LoadConfig(opt.configFile); err != nil {
		logtrace.InitLogger("info")
		return fmt.Errorf("loading config file: %w", err)
	}
	cfg := config.Config()
	logtrace.InitLogger(cfg.LogLevel)
	logtrace.SetTraceEnabled(cfg.TraceRoutes)

	slog := log.With().Str("state", "init").Logger()
	slog.Info().Str("config_file", opt.configFile).Str("driver", cfg.DB.Driver).Msg("config loaded")
	if cfg.Admin.Password == "" {
		slog.Warn().Str("env", cfg.Admin.PasswordEnv).Msg("admin password not set, admin routes are disabled")
	}

	ctx = log.Logger.WithContext(ctx)
	store, err := db.Open(ctx, &cfg.DB)
	if err != nil {
		return fmt.Errorf("opening key store: %w", err)
	}
	defer store.Close()

	licenses := license.NewService(store)
	if err := licenses.InitSchema(ctx); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	gw := gateway.NewFromConfig(&cfg.Gateway)

	serverErrors, shutdownServer, err := createServer(ctx, cfg, licenses, gw)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownServer()
	}

	slog.Info().Msg("server stopped")
	return nil
}

func createServer(ctx context.Context, cfg *config.ConfigParam, licenses *license.Service, gw *gateway.Gateway) (chan error, func(), error) {
	slog := log.With().Str("state", "init").Logger()
	s, err := server.CreateNewServer(cfg, licenses, gw)
	if err != nil {
		return nil, nil, err
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info().Str("port", cfg.ServerPort).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	return serverErrors, shutdown, nil
}

const DefaultConfigFile = "/etc/keygate/keygatesrv.conf"

func parseFlags() cmdoptions {
	var opt cmdoptions
	flag.StringVar(&opt.configFile, "config", DefaultConfigFile, "Path to the config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
