package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/freight-binpacker/internal/application"
	"github.com/eugenenazirov/freight-binpacker/internal/config"
	"github.com/eugenenazirov/freight-binpacker/internal/logging"
)

var signalNotify = signal.Notify

const (
	commandServe = "serve"
	commandPack  = "pack"
)

// invocation is the parsed command line.
type invocation struct {
	command   string
	overrides *config.CLIOverrides
	input     string
	output    string
}

func parseArgs(args []string) (invocation, error) {
	kingpinApp := kingpin.New("binpacker", "Freight bin packer - groups truck bundles into weight-limited bins")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	maxBinWeight := kingpinApp.Flag("max-bin-weight", "Maximum gross weight of a bin").String()
	minBinWeight := kingpinApp.Flag("min-bin-weight", "Gross weight below which a bin is flagged").String()
	maxItemsPerBin := kingpinApp.Flag("max-items-per-bin", "Maximum number of bundles in a bin (must be at least 1)").Default("-1").Int()

	serve := kingpinApp.Command(commandServe, "Run the HTTP service").Default()
	port := serve.Flag("port", "HTTP port exposed by the service").String()
	rateLimitRPSFlag := serve.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := serve.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	pack := kingpinApp.Command(commandPack, "Pack a dataset file and write the result")
	input := pack.Flag("input", "Input dataset (.xlsx or .json)").Short('i').Required().String()
	output := pack.Flag("output", "Output dataset (.xlsx or .json)").Short('o').Required().String()

	command, err := kingpinApp.Parse(args)
	if err != nil {
		return invocation{}, err
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *maxBinWeight != "" {
		overrides.MaxBinWeight = maxBinWeight
	}

	if *minBinWeight != "" {
		overrides.MinBinWeight = minBinWeight
	}

	if *maxItemsPerBin >= 0 {
		overrides.MaxItemsPerBin = maxItemsPerBin
	}

	if *port != "" {
		overrides.Port = port
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	return invocation{
		command:   command,
		overrides: overrides,
		input:     *input,
		output:    *output,
	}, nil
}

func main() {
	inv, err := parseArgs(os.Args[1:])
	kingpin.FatalIfError(err, "invalid arguments")

	cfg, err := config.Load(inv.overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	switch inv.command {
	case commandPack:
		if _, err := application.RunBatch(cfg, logger, inv.input, inv.output); err != nil {
			logger.Error("batch run failed", zap.Error(err))
			_ = logger.Sync()
			os.Exit(1)
		}
	default:
		app, err := application.New(cfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize application", zap.Error(err))
		}

		if err := app.Start(); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}

		shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	}
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
