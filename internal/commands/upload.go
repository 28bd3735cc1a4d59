package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/docker/go-units"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/blobput/blobput/compression"
	"github.com/blobput/blobput/config"
	"github.com/blobput/blobput/keygen"
	"github.com/blobput/blobput/objectstore"
	"github.com/blobput/blobput/uploader"
)

const retryWait = 5 * time.Second

type uploadOptions struct {
	patterns []string
	key      string
	retries  int
	compress bool
	verify   bool
	verbose  bool
}

func runUpload(ctx context.Context, opts uploadOptions, logger log.Logger) error {
	cfg, err := config.Load(env.NewRepository())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	files, err := expandPatterns(opts.patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files match %s", strings.Join(opts.patterns, ", "))
	}
	if opts.key != "" && len(files) > 1 {
		return fmt.Errorf("--key needs a single file, got %d", len(files))
	}

	store, err := objectstore.NewS3Client(ctx, objectstore.S3ClientParams{
		Region:          cfg.Region,
		Bucket:          cfg.Bucket,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	}, logger)
	if err != nil {
		return fmt.Errorf("create object store client: %w", err)
	}

	runner := uploadRunner{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		uploader: uploader.New(store, uploader.Config{
			Concurrency:             cfg.Concurrency,
			ChunkSizeBytes:          cfg.ChunkSizeBytes,
			MultipartThresholdBytes: cfg.MultipartThresholdBytes,
		}, logger),
	}

	for _, path := range files {
		if err := runner.uploadOne(ctx, path); err != nil {
			if objectstore.IsNoSuchBucket(err) {
				logger.Errorf("Bucket %q does not exist in region %s", cfg.Bucket, cfg.Region)
			}
			return err
		}
	}
	return nil
}

type uploadRunner struct {
	cfg      config.Config
	opts     uploadOptions
	logger   log.Logger
	uploader *uploader.Uploader
}

func (r uploadRunner) uploadOne(ctx context.Context, path string) error {
	uploadPath := path
	contentEncoding := ""
	if r.opts.compress {
		compressed, err := compression.CompressFile(path, r.logger)
		if err != nil {
			return fmt.Errorf("compress %s: %w", path, err)
		}
		defer os.Remove(compressed) //nolint:errcheck
		uploadPath = compressed
		contentEncoding = "zstd"
	}

	key := r.opts.key
	if key == "" {
		key = keygen.RandomKey(uploadPath)
	}

	params := uploader.UploadParams{
		FilePath:        uploadPath,
		Key:             key,
		ContentEncoding: contentEncoding,
		CacheControl:    r.cfg.CacheControl,
	}

	var result *uploader.Result
	err := retry.Times(uint(r.opts.retries + 1)).Wait(retryWait).TryWithAbort(func(attempt uint) (error, bool) {
		if attempt > 0 {
			r.logger.Warnf("Retrying upload of %s (attempt %d)", path, attempt+1)
		}

		uploaded, err := r.uploader.Upload(ctx, params)
		if err != nil {
			// A file that fails validation fails it on every attempt.
			var validationErr *uploader.ValidationError
			if errors.As(err, &validationErr) {
				return err, true
			}
			return err, false
		}
		result = uploaded
		return nil, true
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}

	r.logger.Donef("Uploaded %s (%s, %d parts): %s",
		path, units.HumanSize(float64(result.SizeBytes)), result.Parts, result.Location)

	if r.opts.verify {
		if err := verifyLocation(result.Location, r.logger); err != nil {
			return fmt.Errorf("verify %s: %w", result.Location, err)
		}
		r.logger.Donef("Verified %s", result.Location)
	}
	return nil
}

// verifyLocation issues a HEAD request against the uploaded object's URL.
// Transient failures are retried by the HTTP client itself.
func verifyLocation(location string, logger log.Logger) error {
	client := retryhttp.NewClient(logger)

	req, err := retryablehttp.NewRequest(http.MethodHead, location, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("head request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// expandPatterns resolves glob arguments to file paths. Arguments without
// glob characters pass through untouched so missing files surface as upload
// errors, not as empty matches.
func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[{") {
			files = append(files, pattern)
			continue
		}

		base := "."
		relative := pattern
		if filepath.IsAbs(pattern) {
			base = "/"
			relative = strings.TrimPrefix(pattern, "/")
		}

		matches, err := doublestar.Glob(os.DirFS(base), relative)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, match := range matches {
			files = append(files, filepath.Join(base, match))
		}
	}
	return files, nil
}
