package application

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eugenenazirov/freight-binpacker/internal/api"
	"github.com/eugenenazirov/freight-binpacker/internal/config"
	"github.com/eugenenazirov/freight-binpacker/internal/dataset"
	"github.com/eugenenazirov/freight-binpacker/internal/metrics"
	"github.com/eugenenazirov/freight-binpacker/internal/packer"
	"github.com/eugenenazirov/freight-binpacker/internal/storage"
)

// ErrSamePath is returned when a batch run would overwrite its own input.
var ErrSamePath = errors.New("input and output refer to the same file")

// App encapsulates the HTTP server and the logger it reports through.
type App struct {
	logger *zap.Logger
	server *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store := storage.NewMemoryStorage()
	if err := store.SetLimits(cfg.Limits); err != nil {
		return nil, fmt.Errorf("failed to apply configured limits: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := api.NewHandler(packer.New(packer.WithLogger(logger)), store,
		api.WithLogger(logger),
		api.WithMetrics(metrics.NewPackMetrics(registry)),
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	rootHandler := BuildRootHandler(apiRouter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &App{
		logger: logger,
		server: NewServer(cfg, rootHandler),
	}, nil
}

// BuildRootHandler mounts the API under /api/ and the metrics exposition under /metrics.
func BuildRootHandler(apiHandler, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// RunBatch reads bundles from input, packs them with the configured limits
// and writes the annotated dataset to output. Formats follow the file
// extensions, so a workbook can be converted to a JSON report and back.
func RunBatch(cfg config.Config, logger *zap.Logger, input, output string) (packer.Result, error) {
	inFormat, err := dataset.FormatFromPath(input)
	if err != nil {
		return packer.Result{}, err
	}
	outFormat, err := dataset.FormatFromPath(output)
	if err != nil {
		return packer.Result{}, err
	}
	if samePath(input, output) {
		return packer.Result{}, fmt.Errorf("%w: %s", ErrSamePath, output)
	}

	items, err := readDataset(inFormat, input)
	if err != nil {
		return packer.Result{}, err
	}

	start := time.Now()
	result, err := packer.New(packer.WithLogger(logger)).Pack(items, cfg.Limits)
	elapsed := time.Since(start)
	if err != nil {
		return packer.Result{}, fmt.Errorf("pack %s: %w", input, err)
	}

	if err := writeDataset(outFormat, output, result); err != nil {
		return packer.Result{}, err
	}

	for _, b := range result.Bins {
		logger.Info("bin packed",
			zap.Int("bin", b.Bin),
			zap.String("total_gross_weight", b.TotalGrossWeight.String()),
			zap.String("total_nett_weight", b.TotalNettWeight.String()),
			zap.Int("items", b.ItemsCount),
			zap.Bool("below_min_weight", b.BelowMinWeight),
			zap.Bool("overweight", b.Overweight),
		)
	}
	logger.Info("batch complete",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("items", len(result.Assignments)),
		zap.Int("bins", result.BinCount()),
		zap.Int("below_min_bins", result.BelowMinCount()),
		zap.Duration("duration", elapsed),
	)

	return result, nil
}

func readDataset(format dataset.Format, path string) ([]packer.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	items, err := dataset.Read(format, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return items, nil
}

func writeDataset(format dataset.Format, path string, result packer.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	if err := dataset.Write(format, f, result); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
