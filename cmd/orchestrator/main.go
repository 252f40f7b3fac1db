// Command orchestrator runs the HTTP API, the input/output monitors and an
// in-process worker pool in a single process (§6, §4.4-§4.7).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fluxorio/orchestrator/pkg/config"
	"github.com/fluxorio/orchestrator/pkg/core"
	"github.com/fluxorio/orchestrator/pkg/httpapi"
	"github.com/fluxorio/orchestrator/pkg/observability/otel"
	"github.com/fluxorio/orchestrator/pkg/orchestration"
	"github.com/fluxorio/orchestrator/pkg/scheduler"
	"github.com/fluxorio/orchestrator/pkg/scriptrunner"
	"github.com/fluxorio/orchestrator/pkg/store"
	"github.com/fluxorio/orchestrator/pkg/web"
	"github.com/fluxorio/orchestrator/pkg/workerpool"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config override")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		fatal("load config: %v", err)
	}
	if err := config.LoadOverride(&cfg, *configPath); err != nil {
		fatal("load config override: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid config: %v", err)
	}

	logger := core.NewLogger(core.LoggerConfig{Level: cfg.LogLevel, Dir: cfg.LogDir})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTelExporter != "" && cfg.OTelExporter != "none" {
		otelCfg := otel.DefaultConfig()
		otelCfg.ServiceName = "fluxor-orchestrator"
		otelCfg.Exporter = cfg.OTelExporter
		otelCfg.Endpoint = cfg.OTelEndpoint
		if err := otel.Initialize(ctx, otelCfg); err != nil {
			logger.Warnf("otel init skipped: %v", err)
		} else {
			defer otel.Shutdown(ctx)
		}
	}

	dsn := cfg.DatabaseDSN
	if cfg.TestMode {
		s, err := store.OpenTestDB(cfg.TestDBName, logger)
		if err != nil {
			fatal("open test store: %v", err)
		}
		runWith(ctx, cancel, cfg, s, logger)
		return
	}

	s, err := store.Open(dsn, logger)
	if err != nil {
		fatal("open store: %v", err)
	}
	runWith(ctx, cancel, cfg, s, logger)
}

func runWith(ctx context.Context, cancel context.CancelFunc, cfg config.Config, s *store.Store, logger core.Logger) {
	if err := s.Migrate(ctx); err != nil {
		fatal("migrate store: %v", err)
	}
	defer s.Close()

	notifier := store.NewNotifier(cfg.DatabaseDSN, s.Dialect, logger)
	if s.Dialect == store.DialectPostgres {
		if err := notifier.Start(); err != nil {
			logger.Warnf("notifier start skipped: %v", err)
		} else {
			defer notifier.Stop()
		}
	}

	svc := orchestration.New(s, logger)

	poolCfg := workerpool.Config{
		MinWorkers:      cfg.MinWorkers,
		MaxWorkers:      cfg.MaxWorkers,
		WorkerThreadCap: int64(cfg.WorkerThreadCap),
		OutputQueueSize: cfg.WorkerQueueCap,
	}
	pool, err := workerpool.New(poolCfg, scriptrunner.NewProcessRunner(), logger)
	if err != nil {
		fatal("start worker pool: %v", err)
	}
	defer pool.Close()

	autoscaler := workerpool.NewAutoscaler(pool, workerpool.AutoscalerConfig{
		SampleInterval: time.Second,
		ScaleUpAvg:     cfg.ScaleUpThreshold,
		ScaleDownAvg:   cfg.ScaleDownThreshold,
	}, logger)
	autoscaler.Start(ctx)
	defer autoscaler.Stop()

	input := scheduler.NewInputMonitor(s, pool, scheduler.InputMonitorConfig{
		PollInterval: cfg.InputMonitorPollInterval,
		BatchSize:    cfg.InputMonitorBatchSize,
		Workers:      cfg.InputMonitorWorkers,
	}, logger)
	output := scheduler.NewOutputMonitor(s, notifier, pool, scheduler.OutputMonitorConfig{
		MinPollInterval: cfg.OutputMonitorMinPollInterval,
		MaxPollInterval: cfg.OutputMonitorMaxPollInterval,
		BatchSize:       cfg.OutputMonitorBatchSize,
	}, logger)
	supervisor := scheduler.NewSupervisor(s, input, output, pool, scheduler.SupervisorConfig{
		HealthCheckInterval:    cfg.HealthCheckInterval,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	}, logger)
	if err := supervisor.Start(ctx); err != nil {
		fatal("start scheduler supervisor: %v", err)
	}
	defer supervisor.Stop()

	api := httpapi.New(svc, pool, logger)
	router := httpapi.NewRouter(api, httpapi.Config{JWTSecret: cfg.JWTSecret})
	server := web.NewServerWithRouter(web.DefaultServerConfig(cfg.HTTPAddr), router)

	go func() {
		logger.Infof("orchestrator: http api listening on %s", cfg.HTTPAddr)
		if err := server.Start(); err != nil {
			logger.Errorf("http server stopped: %v", err)
		}
	}()

	streamAddr := streamAddrFrom(cfg.HTTPAddr)
	streamServer := &http.Server{Addr: streamAddr, Handler: httpapi.NewStreamServer(svc, logger).Handler()}
	go func() {
		logger.Infof("orchestrator: execution stream listening on %s", streamAddr)
		if err := streamServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("stream server stopped: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Infof("orchestrator: shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Stop()
	streamServer.Shutdown(shutdownCtx)
}

// streamAddrFrom derives the websocket stream server's address by bumping
// the HTTP API's port by one, keeping a single HTTP_ADDR config knob.
func streamAddrFrom(httpAddr string) string {
	i := strings.LastIndex(httpAddr, ":")
	if i < 0 {
		return httpAddr
	}
	port, err := strconv.Atoi(httpAddr[i+1:])
	if err != nil {
		return httpAddr
	}
	return httpAddr[:i+1] + strconv.Itoa(port+1)
}

func fatal(format string, args ...interface{}) {
	logger := core.NewDefaultLogger()
	logger.Errorf(format, args...)
	os.Exit(1)
}
