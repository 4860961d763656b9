package commands

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/geox/judge/internal/api"
	"github.com/geox/judge/internal/apiserver"
	"github.com/geox/judge/internal/config"
	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/judge"
	"github.com/geox/judge/internal/lifecycle"
	"github.com/geox/judge/internal/logging"
	"github.com/geox/judge/internal/problemindex"
	"github.com/geox/judge/internal/runcache"
	"github.com/geox/judge/internal/tracing"
)

var (
	settingsPath string
	listenAddr   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the judge HTTP API",
	Long: `Start the judge HTTP API. The SSOT is re-read on every request; with
watch_ssot enabled, changes to the file are logged and counted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadServeSettings(settingsPath, listenAddr)
		if err != nil {
			return err
		}
		return runServe(settings)
	},
}

func init() {
	serveCmd.Flags().StringVar(&settingsPath, "settings", "", "Path to the judge.yaml settings file (defaults apply when empty)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Override listen_addr from the settings file")
}

func loadServeSettings(path, listen string) (*config.Settings, error) {
	var settings *config.Settings
	if path == "" {
		defaults := config.DefaultSettings()
		settings = &defaults
	} else {
		loaded, err := config.LoadSettings(path)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}
	if listen != "" {
		settings.ListenAddr = listen
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return settings, nil
}

func runServe(settings *config.Settings) error {
	logger := logging.GetLogger("serve")
	logger.Info("Starting judge v%s", Version)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := governance.NewFileStore(settings.SSOTPath)
	gov := governance.NewGovernor(store, governance.WithMetrics(governance.NewMetrics(registry)))
	initial, err := gov.Current(context.Background())
	if err != nil {
		return fmt.Errorf("initial SSOT load failed: %w", err)
	}

	var reader evidence.Reader
	if settings.EvidencePath != "" {
		reader = evidence.NewFileReader(settings.EvidencePath)
	} else {
		logger.Warn("No evidence_path configured, serving from an empty in-memory reader")
		reader = evidence.NewMemoryReader()
	}

	logger.Info("Loaded SSOT %s (%s)", settings.SSOTPath, initial.Hash)

	runs, err := runcache.New(settings.RecentRuns)
	if err != nil {
		return err
	}

	manager := lifecycle.NewManager()
	manager.SetShutdownTimeout(settings.ShutdownTimeout)

	tracingProvider, err := tracing.NewProvider(settings.Tracing, Version)
	if err != nil {
		logger.Warn("Failed to initialize tracing (continuing without tracing): %v", err)
		tracingProvider, _ = tracing.NewProvider(config.TracingSettings{}, Version)
	}
	if err := manager.Register(tracingProvider); err != nil {
		return err
	}

	pipeline := judge.NewPipeline(gov, reader,
		judge.WithMetrics(judge.NewMetrics(registry)),
		judge.WithRecorder(runs),
		judge.WithTracer(tracingProvider.Tracer("judge.pipeline")),
	)
	handler := api.NewJudgeHandler(pipeline, gov, runs, logging.GetLogger("api"), tracingProvider.Tracer("judge.api"),
		api.WithIndexConstants(problemindex.Constants{
			MergeOverlapRatio: settings.ProblemIndex.MergeOverlapRatio,
			ExpireAfterMs:     settings.ProblemIndex.ExpireAfter.Milliseconds(),
		}),
	)

	ready := apiserver.ReadinessFunc(func() bool {
		_, err := gov.Current(context.Background())
		return err == nil
	})
	server := apiserver.New(settings.ListenAddr, handler, registry, ready)

	deps := []lifecycle.Component{tracingProvider}
	if settings.WatchSSOT {
		tracker := newSSOTTracker(registry, initial.Hash)
		watcher, err := config.NewFileWatcher(config.FileWatcherConfig{
			FilePath:       settings.SSOTPath,
			DebounceMillis: settings.DebounceMillis,
		}, tracker.onChange)
		if err != nil {
			return err
		}
		if err := manager.Register(watcher); err != nil {
			return err
		}
		deps = append(deps, watcher)
	}
	if err := manager.Register(server, deps...); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(ctx); err != nil {
		return err
	}
	logger.Info("Judge API listening on %s", server.Addr())

	<-ctx.Done()
	logger.Info("Shutdown signal received, gracefully shutting down...")

	if err := manager.Stop(context.Background()); err != nil {
		logger.Error("Error during shutdown: %v", err)
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

// ssotTracker logs SSOT content changes seen by the file watcher. It keeps
// only the last hash; runs always re-read the file.
type ssotTracker struct {
	mu       sync.Mutex
	lastHash string
	changes  *prometheus.CounterVec
	logger   *logging.Logger
}

func newSSOTTracker(reg prometheus.Registerer, initialHash string) *ssotTracker {
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "judge_ssot_changes_total",
		Help: "SSOT file change notifications by result",
	}, []string{"result"})
	reg.MustRegister(changes)
	return &ssotTracker{lastHash: initialHash, changes: changes, logger: logging.GetLogger("serve.ssot")}
}

func (t *ssotTracker) onChange(path string) error {
	ssot, err := governance.LoadSSOT(path)
	if err != nil {
		t.changes.WithLabelValues("invalid").Inc()
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if ssot.Hash == t.lastHash {
		t.changes.WithLabelValues("unchanged").Inc()
		return nil
	}
	previous := t.lastHash
	t.lastHash = ssot.Hash
	t.changes.WithLabelValues("changed").Inc()
	t.logger.InfoWithFields("SSOT changed",
		logging.Field("path", path),
		logging.Field("previous_hash", previous),
		logging.Field("ssot_hash", ssot.Hash),
	)
	return nil
}

