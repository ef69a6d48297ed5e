package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/audiarr/internal/database"
	"github.com/jmylchreest/audiarr/internal/ffmpeg"
	"github.com/jmylchreest/audiarr/internal/metadata"
	"github.com/jmylchreest/audiarr/internal/models"
	"github.com/jmylchreest/audiarr/internal/pipeline"
	"github.com/jmylchreest/audiarr/internal/repository"
	"github.com/jmylchreest/audiarr/internal/selector"
)

var processCmd = &cobra.Command{
	Use:   "process FILE",
	Short: "Set the default audio track of a single file",
	Long: `Probe FILE, pick the default audio track from the original language
(or the configured priority list) and write the change in place.

Exits 0 when the file was changed, was already correct, or was skipped;
exits 1 when processing failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().Bool("dry-run", false, "report the change without writing it (overrides execution.dry_run)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	if cmd.Flags().Changed("dry-run") {
		cfg.Execution.DryRun, _ = cmd.Flags().GetBool("dry-run")
	}

	pipe, resolver, cleanup, err := buildPipeline(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	path := args[0]

	meta := resolver.Resolve(ctx, path, nil)
	result := pipe.Process(ctx, path, meta.OriginalLanguage)

	switch result.Status {
	case models.ResultSuccess, models.ResultSkipped, models.ResultDryRun:
		fmt.Println(result.String())
		return nil
	default:
		return errors.New(result.String())
	}
}

// buildPipeline constructs the probe/select/mutate pipeline and the metadata
// resolver used by the one-shot commands. A database is opened only when TMDB
// is enabled, so lookups share the daemon's response cache; the returned
// cleanup closes it.
func buildPipeline(logger *slog.Logger) (*pipeline.Pipeline, *metadata.Resolver, func(), error) {
	prober := ffmpeg.NewProber(cfg.Tools.FFprobe())
	sel := selector.New(cfg, logger)
	mkv := ffmpeg.NewMKVPropEdit(cfg.Tools.Mkvpropedit(), prober)
	mp4 := ffmpeg.NewMP4Remux(cfg.Tools.FFmpeg(), prober).WithTimeout(cfg.Processing.Timeout())
	pipe := pipeline.New(prober, sel, mkv, mp4, cfg, logger)

	cleanup := func() {}
	var lookup metadata.MediaLookup
	if cfg.TMDB.Enabled && cfg.TMDB.APIKey != "" {
		db, err := database.New(cfg.Database, logger, nil)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening metadata cache: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		lookup = metadata.NewTMDBClient(cfg.TMDB, repository.NewMetadataCacheRepository(db.DB), logger)
		cleanup = func() { db.Close() }
	}
	resolver := metadata.NewResolver(lookup, logger)

	return pipe, resolver, cleanup, nil
}
