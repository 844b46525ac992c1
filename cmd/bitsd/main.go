// Command bitsd runs the bits ledger as a standalone daemon.
//
// It loads a YAML config, overlays environment variables (optionally from
// a .env file), starts the background jobs and serves Prometheus metrics.
// Commands are read from stdin as "actor: command" lines and the reply is
// printed, which makes the daemon usable as a local console or behind a
// comment bridge that writes to its stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/xraph/bits"
	audithook "github.com/xraph/bits/audit_hook"
	"github.com/xraph/bits/events/kafka"
	"github.com/xraph/bits/extension"
	"github.com/xraph/bits/observability"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	envFile := flag.String("env", ".env", "optional .env file")
	metricsAddr := flag.String("metrics", ":9464", "address of the /metrics endpoint, empty to disable")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "bitsd: load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	logger := newLogger(os.Getenv("BITS_LOG_LEVEL"))
	if err := run(*configPath, envOr("BITS_METRICS_ADDR", *metricsAddr), logger); err != nil {
		logger.Error("bitsd failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, metricsAddr string, logger *slog.Logger) error {
	cfg := extension.DefaultConfig()
	if configPath != "" {
		loaded, err := extension.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg = applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := extension.OpenStore(cfg.Store, nil)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := append(cfg.Options(),
		bits.WithLogger(logger),
		bits.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
	)
	var publisher *kafka.Publisher
	if brokers := os.Getenv("BITS_KAFKA_BROKERS"); brokers != "" {
		publisher = kafka.NewPublisher(strings.Split(brokers, ","), os.Getenv("BITS_KAFKA_TOPIC"))
		opts = append(opts, bits.WithPlugin(audithook.New(publisher, audithook.WithLogger(logger))))
	}

	engine := bits.New(s, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		return err
	}

	var srv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler(reg))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := s.Ping(r.Context()); err != nil || engine.Frozen() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		srv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", metricsAddr)
	}

	go console(ctx, engine, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs bits.MultiError
	if srv != nil {
		errs.Add(srv.Shutdown(shutdownCtx))
	}
	errs.Add(engine.Stop(shutdownCtx))
	if publisher != nil {
		errs.Add(publisher.Close())
	}
	return errs.Err()
}

// console executes "actor: command" lines from stdin. Lines starting with
// "n " or "!n " go through the natural-language flow like any other
// command.
func console(ctx context.Context, engine *bits.Engine, logger *slog.Logger) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		actor, line, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			fmt.Println("expected actor: command")
			continue
		}
		fmt.Println(engine.Dispatch(ctx, actor, strings.TrimSpace(line)))
	}
	if err := sc.Err(); err != nil {
		logger.Warn("console closed", "error", err)
	}
}

// applyEnv overlays BITS_* variables on cfg.
func applyEnv(cfg extension.Config) extension.Config {
	if v := os.Getenv("BITS_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("BITS_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
		if cfg.Store.Driver == extension.DriverMemory {
			cfg.Store.Driver = extension.DriverFile
		}
	}
	if v := os.Getenv("BITS_BACKUP_DIR"); v != "" {
		cfg.Backup.Dir = v
	}
	if v := os.Getenv("BITS_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
