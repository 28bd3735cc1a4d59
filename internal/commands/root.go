package commands

import (
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the blobput command. Everything the tool does hangs off
// this single command: expand the arguments, upload each match, report.
func NewRootCmd() *cobra.Command {
	var opts uploadOptions

	cmd := &cobra.Command{
		Use:   "blobput [flags] <path|glob>...",
		Short: "Upload files to S3-compatible object storage",
		Long: `blobput uploads local files to an S3 bucket. Files below the multipart
threshold go up in a single request, larger files are split into chunks
uploaded concurrently and assembled remotely.

Configuration comes from the environment: AWS_REGION, BLOBPUT_BUCKET,
optionally AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY, BLOBPUT_CONCURRENCY,
BLOBPUT_CHUNK_SIZE, BLOBPUT_MULTIPART_THRESHOLD and BLOBPUT_CACHE_CONTROL.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewLogger()
			logger.EnableDebugLog(opts.verbose)

			opts.patterns = args
			return runUpload(cmd.Context(), opts, logger)
		},
	}

	cmd.Flags().StringVarP(&opts.key, "key", "k", "", "Object key to upload under (single file only, default: random key)")
	cmd.Flags().IntVarP(&opts.retries, "retries", "r", 0, "Number of times a failed upload is retried as a whole")
	cmd.Flags().BoolVar(&opts.compress, "compress", false, "Compress the file with zstd before uploading")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "Check the uploaded object's URL after the upload")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}
