package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-columnar/pkg/formats/columnar"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
	"github.com/ajitpratap0/nebula-columnar/pkg/typesystem"
)

// Source kinds understood by the runner registry.
const (
	SourcePostgreSQL = "postgresql"
	SourceMySQL      = "mysql"
	SourceMemory     = "memory"
)

// TransferConfig is the single configuration structure of a transfer. It is
// organized into the same logical sections on the command line, in YAML and
// in NEBULA_* environment variables.
type TransferConfig struct {
	// Name identifies the transfer in logs and output metadata
	Name string `yaml:"name" json:"name" mapstructure:"name"`

	// Source selects the database and the partition queries
	Source SourceConfig `yaml:"source" json:"source" mapstructure:"source"`

	// Transfer controls batching and the requested data order
	Transfer TransferSettings `yaml:"transfer" json:"transfer" mapstructure:"transfer"`

	// Output controls the file format and where it is written
	Output OutputConfig `yaml:"output" json:"output" mapstructure:"output"`

	// Observability controls logging and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// SourceConfig describes the source connection.
type SourceConfig struct {
	// Kind is postgresql, mysql or memory
	Kind string `yaml:"kind" json:"kind" mapstructure:"kind"`
	// DSN is the driver connection string
	DSN string `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
	// Queries holds one query per partition
	Queries []string `yaml:"queries" json:"queries" mapstructure:"queries"`
	// MaxConns caps pooled connections; 0 uses one per query
	MaxConns int `yaml:"max_conns" json:"max_conns" mapstructure:"max_conns"`
	// ConnectTimeout bounds connection setup
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" mapstructure:"connect_timeout"`
	// Location is the IANA zone MySQL DATETIME values are read in; empty
	// uses the DSN's loc parameter
	Location string `yaml:"location" json:"location" mapstructure:"location"`
}

// TransferSettings holds dispatcher settings.
type TransferSettings struct {
	// BatchSize is the row capacity of one record batch
	BatchSize int `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size"`
	// DataOrder is row_major or column_major
	DataOrder string `yaml:"data_order" json:"data_order" mapstructure:"data_order"`
	// Timeout bounds the whole transfer; 0 disables it
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	// ProgressInterval sets how often progress is logged; 0 disables it
	ProgressInterval time.Duration `yaml:"progress_interval" json:"progress_interval" mapstructure:"progress_interval"`
}

// OutputConfig describes the output file.
type OutputConfig struct {
	// Path is a local path or s3://bucket/key
	Path string `yaml:"path" json:"path" mapstructure:"path"`
	// Format is parquet, arrow or arrows
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// Compression is the format-specific codec name; empty uses the format
	// default
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// RowGroupSize caps Parquet row groups
	RowGroupSize int64 `yaml:"row_group_size" json:"row_group_size" mapstructure:"row_group_size"`
	// S3 configures uploads for s3:// paths
	S3 S3Config `yaml:"s3" json:"s3" mapstructure:"s3"`
}

// S3Config configures the S3 upload manager.
type S3Config struct {
	Region       string `yaml:"region" json:"region" mapstructure:"region"`
	Endpoint     string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style" json:"use_path_style" mapstructure:"use_path_style"`
	// PartSize is the multipart chunk size in bytes
	PartSize    int64 `yaml:"part_size" json:"part_size" mapstructure:"part_size"`
	Concurrency int   `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency"`
}

// ObservabilityConfig contains logging and metrics settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding" mapstructure:"log_encoding"`
	// MetricsAddr serves /metrics when set, e.g. ":9090"
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
}

// NewTransferConfig creates a TransferConfig with defaults for everything
// except the source connection and the output path.
//
// Example:
//
//	cfg := config.NewTransferConfig("orders")
//	cfg.Source.Kind = config.SourcePostgreSQL
//	cfg.Source.DSN = "postgres://localhost/shop"
//	cfg.Source.Queries = []string{"SELECT * FROM orders"}
//	cfg.Output.Path = "orders.parquet"
func NewTransferConfig(name string) *TransferConfig {
	return &TransferConfig{
		Name: name,
		Source: SourceConfig{
			ConnectTimeout: 10 * time.Second,
		},
		Transfer: TransferSettings{
			BatchSize:        64000,
			DataOrder:        "row_major",
			ProgressInterval: 10 * time.Second,
		},
		Output: OutputConfig{
			Format:       "parquet",
			RowGroupSize: 1024 * 1024,
			S3: S3Config{
				PartSize:    16 * 1024 * 1024,
				Concurrency: runtime.NumCPU(),
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogEncoding: "console",
		},
	}
}

// Validate checks required fields and value ranges. It does not connect to
// anything.
func (c *TransferConfig) Validate() error {
	var problems []string

	switch c.Source.Kind {
	case SourcePostgreSQL, SourceMySQL:
		if c.Source.DSN == "" {
			problems = append(problems, "source.dsn is required")
		}
	case SourceMemory:
	case "":
		problems = append(problems, "source.kind is required")
	default:
		problems = append(problems, fmt.Sprintf("unknown source.kind %q", c.Source.Kind))
	}
	if len(c.Source.Queries) == 0 && c.Source.Kind != SourceMemory {
		problems = append(problems, "at least one source query is required")
	}
	for i, q := range c.Source.Queries {
		if strings.TrimSpace(q) == "" {
			problems = append(problems, fmt.Sprintf("source.queries[%d] is empty", i))
		}
	}
	if c.Source.MaxConns < 0 {
		problems = append(problems, "source.max_conns cannot be negative")
	}
	if c.Source.Location != "" {
		if _, err := time.LoadLocation(c.Source.Location); err != nil {
			problems = append(problems, fmt.Sprintf("invalid source.location %q", c.Source.Location))
		}
	}

	if c.Transfer.BatchSize <= 0 {
		problems = append(problems, "transfer.batch_size must be positive")
	}
	if _, err := typesystem.ParseDataOrder(c.Transfer.DataOrder); err != nil {
		problems = append(problems, fmt.Sprintf("unknown transfer.data_order %q", c.Transfer.DataOrder))
	}
	if c.Transfer.Timeout < 0 || c.Transfer.ProgressInterval < 0 {
		problems = append(problems, "durations cannot be negative")
	}

	if c.Output.Path == "" {
		problems = append(problems, "output.path is required")
	}
	if _, err := columnar.ParseFormat(c.Output.Format); err != nil {
		problems = append(problems, fmt.Sprintf("unknown output.format %q", c.Output.Format))
	}
	if c.Output.RowGroupSize < 0 || c.Output.S3.PartSize < 0 || c.Output.S3.Concurrency < 0 {
		problems = append(problems, "output sizes cannot be negative")
	}

	if len(problems) == 0 {
		return nil
	}
	return nebulaerrors.New(nebulaerrors.ErrorTypeValidation, "invalid transfer configuration").
		WithDetail("problems", problems)
}

// MaskedDSN returns the source DSN with any password replaced, for logging.
func (s *SourceConfig) MaskedDSN() string {
	dsn := s.DSN
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	userinfo := dsn[:at]
	if scheme := strings.Index(userinfo, "://"); scheme >= 0 {
		userinfo = userinfo[scheme+3:]
	}
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return dsn
	}
	start := at - len(userinfo) + colon + 1
	return dsn[:start] + "****" + dsn[at:]
}
