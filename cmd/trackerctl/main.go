package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"tracker/internal/client/app"
	"tracker/internal/client/cli"
	"tracker/internal/client/config"
	"tracker/pkg/logger"
	"tracker/pkg/shutdown"
)

// Константы для переменных окружения.
const (
	EnvLoggerMode  = "TRACKER_LOGGER_MODE"
	EnvLoggerLevel = "TRACKER_LOGGER_LEVEL"
	DefaultEnvFile = ".env"
)

// Константы для сообщений об ошибках.
const (
	ErrInitLogger           = "failed to initialize logger"
	ErrSyncLogger           = "failed to sync logger"
	ErrLoadConfig           = "failed to load configuration"
	ErrInitLoggerWithConfig = "failed to initialize logger with configuration settings"
	ErrBuildClient          = "failed to build tracker client"
	ErrCommandFailed        = "command failed"
	ErrServeMetrics         = "failed to serve metrics"
)

// Константы для игнорируемых ошибок.
const (
	ErrSyncStderr = "sync /dev/stderr: invalid argument"
	ErrSyncStdout = "sync /dev/stdout: invalid argument"
)

// Константы для сообщений.
const (
	LogServingMetrics = "serving metrics"
	LogStoppingClient = "closing tracker client"
)

func main() {
	envFile := flag.String("env", DefaultEnvFile, "optional .env file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, cli.Usage) }
	flag.Parse()

	env := logger.Production
	if strings.ToLower(os.Getenv(EnvLoggerMode)) == "development" {
		env = logger.Development
	}

	log, err := logger.NewLogger(env, os.Getenv(EnvLoggerLevel))
	if err != nil {
		panic(ErrInitLogger + ": " + err.Error())
	}
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(
		logger.NewRequestIDContext(context.Background(), ""), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exitCode int

	func() {
		defer func() {
			if err := log.Sync(); err != nil {
				errMsg := err.Error()
				if strings.Contains(errMsg, ErrSyncStderr) || strings.Contains(errMsg, ErrSyncStdout) {
					return
				}
				if _, writeErr := fmt.Fprintf(os.Stderr, "%s: %v\n", ErrSyncLogger, err); writeErr != nil {
					panic(writeErr)
				}
			}
		}()

		cfg, err := config.Load(ctx, *envFile)
		if err != nil {
			log.Error(ctx, ErrLoadConfig, zap.Error(err))
			exitCode = 1
			return
		}

		finalLogger, err := logger.NewLogger(cfg.Logging.GetEnvironment(), cfg.Logging.Level)
		if err != nil {
			log.Error(ctx, ErrInitLoggerWithConfig, zap.Error(err))
			exitCode = 1
			return
		}
		logger.SetGlobalLogger(finalLogger)
		log = finalLogger

		client, err := app.New(ctx, cfg, app.WithNavigator(cli.NewNavigator(os.Stderr)))
		if err != nil {
			log.Error(ctx, ErrBuildClient, zap.Error(err))
			exitCode = 1
			return
		}

		hooks := []shutdown.Hook{
			func(ctx context.Context) error {
				log.Debug(ctx, LogStoppingClient)
				return client.Close()
			},
		}

		if cfg.Metrics.Address != "" {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, client.MetricsHandler())
			srv := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: cfg.API.RequestTimeout}

			log.Info(ctx, LogServingMetrics, zap.String("address", cfg.Metrics.Address))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error(ctx, ErrServeMetrics, zap.Error(err))
				}
			}()
			hooks = append(hooks, srv.Shutdown)
		}

		runErr := cli.NewRunner(client, os.Stdout).Run(ctx, flag.Args())
		shutdown.Run(context.WithoutCancel(ctx), cfg.Shutdown.GetTimeout(), hooks...)

		if runErr != nil {
			if errors.Is(runErr, cli.ErrUsage) {
				fmt.Fprint(os.Stderr, cli.Usage)
				exitCode = 2
				return
			}
			fmt.Fprintf(os.Stderr, "%s: %v\n", ErrCommandFailed, runErr)
			exitCode = 1
		}
	}()

	if exitCode != 0 {
		stop()
		os.Exit(exitCode)
	}
}
