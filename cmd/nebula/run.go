package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nebula-columnar/internal/pipeline"
	"github.com/ajitpratap0/nebula-columnar/pkg/config"
	"github.com/ajitpratap0/nebula-columnar/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-columnar/pkg/formats/columnar"
	"github.com/ajitpratap0/nebula-columnar/pkg/logger"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/storage"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// envPrefix prefixes every configuration key in the environment, e.g.
// NEBULA_SOURCE_DSN or NEBULA_TRANSFER_BATCH_SIZE.
const envPrefix = "NEBULA"

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"name":              "name",
	"source":            "source.kind",
	"dsn":               "source.dsn",
	"query":             "source.queries",
	"max-conns":         "source.max_conns",
	"connect-timeout":   "source.connect_timeout",
	"location":          "source.location",
	"batch-size":        "transfer.batch_size",
	"data-order":        "transfer.data_order",
	"timeout":           "transfer.timeout",
	"progress-interval": "transfer.progress_interval",
	"output":            "output.path",
	"format":            "output.format",
	"compression":       "output.compression",
	"row-group-size":    "output.row_group_size",
	"s3-region":         "output.s3.region",
	"s3-endpoint":       "output.s3.endpoint",
	"s3-path-style":     "output.s3.use_path_style",
	"log-level":         "observability.log_level",
	"log-encoding":      "observability.log_encoding",
	"metrics-addr":      "observability.metrics_addr",
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a transfer",
		Long: `Run one transfer: every --query is read as its own partition, the rows are
converted into Arrow record batches and the batches are written as one file.

Settings are taken from flags, then NEBULA_* environment variables, then the
--config file, then built-in defaults.

Examples:
  nebula run --source postgresql --dsn postgres://etl@db/shop \
    --query "SELECT * FROM orders WHERE id % 2 = 0" \
    --query "SELECT * FROM orders WHERE id % 2 = 1" \
    --output s3://lake/orders.parquet

  nebula run --source memory --output sample.arrow --format arrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := loadTransferConfig(cmd.Flags(), path)
			if err != nil {
				return err
			}
			return runTransfer(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("name", "", "Transfer name")
	f.StringP("source", "s", "", "Source kind (postgresql, mysql, memory)")
	f.String("dsn", "", "Source connection string")
	f.StringArrayP("query", "q", nil, "Partition query; repeat for more partitions")
	f.Int("max-conns", 0, "Maximum source connections (0: one per query)")
	f.Duration("connect-timeout", 10*time.Second, "Source connection timeout")
	f.String("location", "", "Time zone of MySQL DATETIME values (default: the DSN's loc)")
	f.Int("batch-size", 64000, "Rows per record batch")
	f.String("data-order", "row_major", "Data order requested from the destination")
	f.Duration("timeout", 0, "Transfer timeout (0: none)")
	f.Duration("progress-interval", 10*time.Second, "Progress log interval (0: off)")
	f.StringP("output", "o", "", "Output path or s3://bucket/key")
	f.StringP("format", "f", "parquet", "Output format (parquet, arrow, arrows)")
	f.String("compression", "", "Output compression (format default when empty)")
	f.Int64("row-group-size", 1024*1024, "Maximum rows per Parquet row group")
	f.String("s3-region", "", "S3 region")
	f.String("s3-endpoint", "", "S3 endpoint override")
	f.Bool("s3-path-style", false, "Use path-style S3 addressing")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

// loadTransferConfig layers flags over NEBULA_* variables over the YAML file
// over defaults. Only flags that were set on the command line take part.
func loadTransferConfig(flags *pflag.FlagSet, path string) (*config.TransferConfig, error) {
	cfg := config.NewTransferConfig("nebula")
	if path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file (with defaults and ${VAR} substitution applied) becomes
	// viper's config layer.
	base, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "failed to encode configuration")
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "failed to read configuration")
	}

	for name, key := range flagKeys {
		fl := flags.Lookup(name)
		if fl == nil {
			continue
		}
		if err := v.BindPFlag(key, fl); err != nil {
			return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "failed to bind flag").
				WithDetail("flag", name)
		}
	}

	out := &config.TransferConfig{}
	if err := v.Unmarshal(out); err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "failed to decode configuration")
	}
	return out, nil
}

// summary is printed to stdout when a transfer completes.
type summary struct {
	TransferID string        `json:"transfer_id"`
	Source     string        `json:"source"`
	Location   string        `json:"location"`
	Format     string        `json:"format"`
	Rows       int64         `json:"rows"`
	Batches    int           `json:"batches"`
	Partitions int           `json:"partitions"`
	Bytes      int64         `json:"bytes"`
	Duration   time.Duration `json:"duration_ns"`
}

func runTransfer(ctx context.Context, cfg *config.TransferConfig, stdout io.Writer) error {
	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		return err
	}
	order, err := typesystem.ParseDataOrder(cfg.Transfer.DataOrder)
	if err != nil {
		return err
	}
	format, err := columnar.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	transferID := uuid.NewString()
	log := logger.Get().With(
		zap.String("component", "nebula-cli"),
		zap.String("transfer_id", transferID),
		zap.String("source", cfg.Source.Kind),
	)
	log.Info("starting transfer",
		zap.String("name", cfg.Name),
		zap.String("dsn", cfg.Source.MaskedDSN()),
		zap.Int("partitions", len(cfg.Source.Queries)),
		zap.String("output", cfg.Output.Path),
		zap.String("format", string(format)),
		zap.Int("batch_size", cfg.Transfer.BatchSize))

	if cfg.Observability.MetricsAddr != "" {
		ms := newMetricsServer(cfg.Observability.MetricsAddr, log)
		ms.startAsync()
		defer ms.stop()
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Transfer.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Transfer.Timeout)
		defer cancel()
	}

	runner, err := registry.CreateRunner(cfg, pipeline.Config{
		TransferID:       transferID,
		BatchSize:        cfg.Transfer.BatchSize,
		DataOrder:        order,
		ProgressInterval: cfg.Transfer.ProgressInterval,
	}, log)
	if err != nil {
		return err
	}

	res, err := runner.Run(ctx)
	if res != nil {
		defer res.Release()
	}
	if err != nil {
		if res != nil {
			for _, p := range res.Failed() {
				log.Error("partition failed", zap.Int("partition", p.Index), zap.Int64("rows", p.Rows), zap.Error(p.Err))
			}
		}
		// A partial transfer is not written.
		return err
	}

	info := columnar.GetFormatInfo(format)
	sink, err := storage.Create(ctx, cfg.Output.Path, storage.Options{
		ContentType: info.MIMEType,
		Metadata: map[string]string{
			"transfer-id": transferID,
			"source":      cfg.Source.Kind,
			"rows":        strconv.FormatInt(res.Rows, 10),
			"format":      string(format),
		},
		S3: storage.S3Options{
			Region:       cfg.Output.S3.Region,
			Endpoint:     cfg.Output.S3.Endpoint,
			UsePathStyle: cfg.Output.S3.UsePathStyle,
			PartSize:     cfg.Output.S3.PartSize,
			Concurrency:  cfg.Output.S3.Concurrency,
		},
		Logger: log,
	})
	if err != nil {
		return err
	}

	n, err := columnar.WriteAll(sink, res.Schema, res.Records, &columnar.WriterConfig{
		Format:           format,
		Compression:      cfg.Output.Compression,
		RowGroupSize:     cfg.Output.RowGroupSize,
		EnableDictionary: true,
	})
	if err != nil {
		if abortErr := sink.Abort(); abortErr != nil {
			log.Warn("failed to discard partial output", zap.Error(abortErr))
		}
		return err
	}
	location, err := sink.Commit()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(summary{
		TransferID: transferID,
		Source:     cfg.Source.Kind,
		Location:   location,
		Format:     string(format),
		Rows:       res.Rows,
		Batches:    len(res.Records),
		Partitions: len(res.Partitions),
		Bytes:      n,
		Duration:   res.Duration,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}
