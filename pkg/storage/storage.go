// Package storage delivers finished output files to a local path or to an
// S3 object. A Sink is written like a file and only becomes visible at its
// destination when it is committed: local files are renamed into place and
// S3 objects are streamed through the multipart upload manager, which only
// completes the upload once the writer is closed.
package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-columnar/pkg/logger"
	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

// Location is a parsed output URI.
type Location struct {
	// Scheme is "file" or "s3".
	Scheme string
	// Bucket and Key are set for s3 locations.
	Bucket string
	Key    string
	// Path is set for file locations.
	Path string
}

func (l Location) String() string {
	if l.Scheme == "s3" {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// ParseLocation parses "s3://bucket/key", "file:///path" or a plain path.
func ParseLocation(uri string) (Location, error) {
	if uri == "" {
		return Location{}, nebulaerrors.New(nebulaerrors.ErrorTypeConfig, "output location is required")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: "file", Path: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "invalid output location")
	}
	switch u.Scheme {
	case "file":
		return Location{Scheme: "file", Path: u.Path}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, nebulaerrors.Newf(nebulaerrors.ErrorTypeConfig, "s3 location %q needs a bucket and a key", uri)
		}
		return Location{Scheme: "s3", Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, nebulaerrors.Newf(nebulaerrors.ErrorTypeConfig, "unsupported output scheme %q", u.Scheme)
	}
}

// Uploader is the part of *manager.Uploader a sink uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Options configures S3 uploads.
type S3Options struct {
	Region string
	// Endpoint overrides the service endpoint (MinIO, LocalStack).
	Endpoint     string
	UsePathStyle bool
	// PartSize is the multipart chunk size; 0 uses the manager default.
	PartSize    int64
	Concurrency int
}

// Options configures a sink.
type Options struct {
	ContentType string
	Metadata    map[string]string
	S3          S3Options
	// Uploader replaces the S3 upload manager built from S3.
	Uploader Uploader
	Logger   *zap.Logger
}

// Sink is an output file in the making.
type Sink interface {
	io.Writer
	// Commit publishes the file and returns its location.
	Commit() (string, error)
	// Abort discards everything written.
	Abort() error
}

// Create opens a sink at uri.
func Create(ctx context.Context, uri string, opts Options) (Sink, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return nil, err
	}
	log := logger.OrGlobal(opts.Logger).With(zap.String("component", "storage"))

	if loc.Scheme == "file" {
		return newFileSink(loc.Path, log)
	}

	up := opts.Uploader
	if up == nil {
		up, err = NewUploader(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
	}
	return newS3Sink(ctx, up, loc, opts, log), nil
}

// NewUploader builds an S3 upload manager from the default credential chain.
func NewUploader(ctx context.Context, o S3Options) (*manager.Uploader, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if o.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(o.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
		so.UsePathStyle = o.UsePathStyle
	})

	return manager.NewUploader(client, func(u *manager.Uploader) {
		if o.PartSize > 0 {
			u.PartSize = o.PartSize
		}
		if o.Concurrency > 0 {
			u.Concurrency = o.Concurrency
		}
	}), nil
}

type fileSink struct {
	f      *os.File
	path   string
	logger *zap.Logger
	done   bool
}

func newFileSink(path string, log *zap.Logger) (*fileSink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to create output directory").
			WithDetail("path", dir)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}
	return &fileSink{f: f, path: path, logger: log}, nil
}

func (s *fileSink) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

func (s *fileSink) Commit() (string, error) {
	if s.done {
		return "", nebulaerrors.New(nebulaerrors.ErrorTypeState, "sink already finished")
	}
	s.done = true

	tmp := s.f.Name()
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		os.Remove(tmp)
		return "", nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to sync output file")
	}
	if err := s.f.Close(); err != nil {
		os.Remove(tmp)
		return "", nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to close output file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return "", nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to move output file into place").
			WithDetail("path", s.path)
	}

	s.logger.Info("output written", zap.String("path", s.path))
	return s.path, nil
}

func (s *fileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.f.Close()
	if err := os.Remove(s.f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to remove partial output")
	}
	return nil
}

var errAborted = errors.New("upload aborted")

type s3Sink struct {
	pw     *io.PipeWriter
	loc    Location
	logger *zap.Logger
	result chan uploadResult
	done   bool
}

type uploadResult struct {
	out *manager.UploadOutput
	err error
}

func newS3Sink(ctx context.Context, up Uploader, loc Location, opts Options, log *zap.Logger) *s3Sink {
	pr, pw := io.Pipe()
	s := &s3Sink{
		pw:     pw,
		loc:    loc,
		logger: log,
		result: make(chan uploadResult, 1),
	}

	input := &s3.PutObjectInput{
		Bucket:   aws.String(loc.Bucket),
		Key:      aws.String(loc.Key),
		Body:     pr,
		Metadata: opts.Metadata,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	go func() {
		out, err := up.Upload(ctx, input)
		// Unblock the writer if the upload stopped reading early.
		pr.CloseWithError(err)
		s.result <- uploadResult{out: out, err: err}
	}()
	return s
}

func (s *s3Sink) Write(p []byte) (int, error) {
	return s.pw.Write(p)
}

func (s *s3Sink) Commit() (string, error) {
	if s.done {
		return "", nebulaerrors.New(nebulaerrors.ErrorTypeState, "sink already finished")
	}
	s.done = true

	s.pw.Close()
	res := <-s.result
	if res.err != nil {
		return "", nebulaerrors.Wrap(res.err, nebulaerrors.ErrorTypeConnection, "failed to upload to S3").
			WithDetail("location", s.loc.String())
	}

	location := s.loc.String()
	if res.out != nil && res.out.Location != "" {
		location = res.out.Location
	}
	s.logger.Info("output uploaded", zap.String("location", location))
	return location, nil
}

func (s *s3Sink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.pw.CloseWithError(errAborted)
	<-s.result
	return nil
}
