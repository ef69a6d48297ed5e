package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/audiarr/internal/models"
	"github.com/jmylchreest/audiarr/internal/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan PATH",
	Short: "Process every video file under a directory",
	Long: `Walk PATH for video files and run each one through the processing
pipeline, printing a per-file result and a summary.

Exits 1 when any file failed to process.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolP("recursive", "r", true, "scan subdirectories recursively")
	scanCmd.Flags().StringP("pattern", "p", "", "glob pattern to match files (e.g. \"*.mkv\")")
	scanCmd.Flags().Bool("dry-run", false, "report changes without writing them (overrides execution.dry_run)")
}

func runScan(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	if cmd.Flags().Changed("dry-run") {
		cfg.Execution.DryRun, _ = cmd.Flags().GetBool("dry-run")
	}
	recursive, _ := cmd.Flags().GetBool("recursive")
	pattern, _ := cmd.Flags().GetString("pattern")

	files, err := scanner.Scan(args[0], pattern, recursive)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("no video files found")
		return nil
	}

	pipe, resolver, cleanup, err := buildPipeline(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	counts := make(map[models.ResultStatus]int)

	fmt.Printf("found %d file(s)\n\n", len(files))
	for i, file := range files {
		fmt.Printf("[%d/%d] %s\n", i+1, len(files), filepath.Base(file))

		meta := resolver.Resolve(ctx, file, nil)
		result := pipe.Process(ctx, file, meta.OriginalLanguage)
		counts[result.Status]++

		fmt.Printf("  %s\n", result.String())
	}

	fmt.Println()
	fmt.Println("summary:")
	fmt.Printf("  success: %d\n", counts[models.ResultSuccess])
	fmt.Printf("  dry run: %d\n", counts[models.ResultDryRun])
	fmt.Printf("  skipped: %d\n", counts[models.ResultSkipped])
	fmt.Printf("  failed:  %d\n", counts[models.ResultFailed])
	fmt.Printf("  errors:  %d\n", counts[models.ResultError])
	fmt.Printf("  total:   %d\n", len(files))

	if bad := counts[models.ResultFailed] + counts[models.ResultError]; bad > 0 {
		return fmt.Errorf("%d of %d files failed", bad, len(files))
	}
	return nil
}
