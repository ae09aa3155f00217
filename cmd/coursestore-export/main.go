// Command coursestore-export writes a JSON snapshot of every stored course to
// the configured blob store. Storage, blob target and logging come from the
// COURSESTORE_* environment, optionally seeded from an env file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"coursestore/internal/blob"
	"coursestore/internal/config"
	"coursestore/internal/core"
	"coursestore/internal/logging"
	"coursestore/pkg/domain"
)

var (
	exitFunc = os.Exit
	nowFunc  = time.Now
)

func main() {
	exitFunc(cli(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("coursestore-export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var envFile, key, metricsOut string
	fs.StringVar(&envFile, "env", ".env", "optional env file loaded before the process environment")
	fs.StringVar(&key, "key", "", "blob key for the snapshot (default courses/<utc timestamp>.json)")
	fs.StringVar(&metricsOut, "metrics", "-", "file receiving gateway metrics in Prometheus text format; - for stderr, empty to disable")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if key == "" {
		key = "courses/" + nowFunc().UTC().Format("20060102T150405Z") + ".json"
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}
	logger := logging.New(cfg.Log, stderr)

	reg := prometheus.NewRegistry()
	info, err := run(ctx, cfg, logger, reg, key)
	if werr := writeMetrics(reg, metricsOut, stderr); werr != nil {
		logger.Warn("metrics not written", "destination", metricsOut, "error", werr)
	}
	if err != nil {
		logger.Error("export failed", "blob_key", key, "error", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, logger core.Logger, reg prometheus.Registerer, key string) (info blob.Info, err error) {
	sessions, err := core.OpenCourseSessionFactory(ctx, cfg.Storage)
	if err != nil {
		return blob.Info{}, err
	}
	defer func() {
		if cerr := sessions.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close storage: %w", cerr)
		}
	}()

	metrics, err := core.NewPrometheusMetricsRecorder(cfg.Metrics.Namespace, reg)
	if err != nil {
		return blob.Info{}, err
	}
	gw := core.NewCourseGateway(sessions,
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger)),
	)

	target, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return blob.Info{}, err
	}
	info, err = core.ExportSnapshot[*domain.Course](ctx, gw, target, key)
	if err != nil {
		return blob.Info{}, err
	}
	logger.Info("snapshot exported", "blob_key", info.Key, "driver", string(target.Driver()), "size_bytes", info.Size)
	return info, nil
}

// writeMetrics dumps everything gathered from reg to dest in the text
// exposition format, so the file can feed a node_exporter textfile collector.
func writeMetrics(reg prometheus.Gatherer, dest string, stderr io.Writer) (err error) {
	if dest == "" {
		return nil
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	out := stderr
	if dest != "-" {
		f, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("create metrics file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close metrics file: %w", cerr)
			}
		}()
		out = f
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
