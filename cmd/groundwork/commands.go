package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/poiesic/groundwork"
	"github.com/poiesic/groundwork/config"
	"github.com/poiesic/groundwork/ingestion"
	"github.com/poiesic/groundwork/metrics"
	"github.com/poiesic/groundwork/transport/natsrpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

var errQueryRequired = errors.New("a query argument is required")

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
	return nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String("config"))
}

func openEngine(c *cli.Context, cfg *config.Config, opts ...groundwork.EngineOption) (*groundwork.Engine, error) {
	engine, err := groundwork.Open(c.Context, cfg, slog.Default(), opts...)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	return engine, nil
}

// withEngine loads the configuration, opens an engine, runs fn and closes
// the engine again.
func withEngine(c *cli.Context, fn func(*groundwork.Engine) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Warn("close engine", "err", err)
		}
	}()
	return fn(engine)
}

func printJSON(c *cli.Context, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(out))
	return err
}

func queryArg(c *cli.Context) (string, error) {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return "", errQueryRequired
	}
	return query, nil
}

func ingestCommand(c *cli.Context) error {
	return withEngine(c, func(e *groundwork.Engine) error {
		return printReport(c, e.IngestSources(c.Context))
	})
}

func reingestCommand(c *cli.Context) error {
	return withEngine(c, func(e *groundwork.Engine) error {
		return printReport(c, e.Reingest(c.Context))
	})
}

func printReport(c *cli.Context, report *ingestion.Report) error {
	status := "success"
	if !report.OK() {
		status = "partial"
	}
	return printJSON(c, map[string]any{"status": status, "stats": report})
}

func retrieveCommand(c *cli.Context) error {
	query, err := queryArg(c)
	if err != nil {
		return err
	}
	return withEngine(c, func(e *groundwork.Engine) error {
		passages, err := e.Retrieve(c.Context, query, c.Int("k"))
		if err != nil {
			return err
		}
		return printJSON(c, natsrpc.RetrieveResponse{Results: passages})
	})
}

func askCommand(c *cli.Context) error {
	query, err := queryArg(c)
	if err != nil {
		return err
	}
	return withEngine(c, func(e *groundwork.Engine) error {
		return printJSON(c, e.Ask(c.Context, query))
	})
}

func metricsCommand(c *cli.Context) error {
	return withEngine(c, func(e *groundwork.Engine) error {
		return printJSON(c, e.Metrics())
	})
}

func countCommand(c *cli.Context) error {
	return withEngine(c, func(e *groundwork.Engine) error {
		n, err := e.Count(c.Context)
		if err != nil {
			return err
		}
		return printJSON(c, natsrpc.CountResponse{Count: n})
	})
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if url := c.String("nats-url"); url != "" {
		cfg.NATS.URL = url
	}

	collectors, err := metrics.NewCollectors(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	engine, err := openEngine(c, cfg,
		groundwork.WithRecorder(metrics.NewRecorder(metrics.WithCollectors(collectors))))
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := c.String("metrics-addr"); addr != "" {
		if _, err := serveMetrics(ctx, addr, prometheus.DefaultGatherer); err != nil {
			return err
		}
	}

	if c.Bool("ingest") {
		report := engine.IngestSources(c.Context)
		slog.Info("initial ingest", "chunks", report.Chunks, "failures", len(report.Failures))
	}

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("groundwork"))
	if err != nil {
		return fmt.Errorf("connect to nats at %s: %w", cfg.NATS.URL, err)
	}
	defer nc.Close()

	server, err := natsrpc.NewServer(engine,
		natsrpc.WithPrefix(cfg.NATS.Prefix),
		natsrpc.WithQueue(cfg.NATS.Queue),
		natsrpc.WithRequestTimeout(c.Duration("request-timeout")),
		natsrpc.WithWorkers(c.Int("workers")),
		natsrpc.WithLogger(slog.Default()),
	)
	if err != nil {
		return err
	}
	if err := server.Start(nc); err != nil {
		return err
	}
	defer server.Stop()

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

func watchCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := newWatcher(engine.Loader(), c.Duration("debounce"), func(ctx context.Context) {
		report := engine.Reingest(ctx)
		if err := report.Err(); err != nil {
			slog.Warn("reingest finished with failures", "chunks", report.Chunks, "err", err)
			return
		}
		slog.Info("reingested", "documents", report.Documents, "chunks", report.Chunks)
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
