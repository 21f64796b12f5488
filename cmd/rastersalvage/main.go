package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rastersalvage/internal/app"
	"rastersalvage/internal/config"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	KeepScratch bool
	Tolerance   float64
	ScratchDir  string
	Quiet       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:   "rastersalvage [flags] <bucket> <key>",
		Short: "salvages a partially corrupt GeoTIFF from object storage",
		Long: `
Downloads <key> from <bucket>, probes it with a full re-encode and, when the
raster is corrupt past the tolerance, uploads a trimmed and recompressed copy
holding every row before the first unreadable one. Clean rasters are copied
to the destination prefix unchanged.
`,
		Args:          cobra.ExactArgs(2),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSingle(cmd.Context(), cmd, opts, args[0], args[1])
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVar(&opts.KeepScratch, "keep-scratch", false, "keep the per-run scratch directory (overrides KEEP_SCRATCH)")
	flags.Float64Var(&opts.Tolerance, "tolerance", 0, "minimum fraction of readable rows, in (0, 1] (overrides SALVAGE_TOLERANCE)")
	flags.StringVar(&opts.ScratchDir, "scratch-dir", "", "scratch `directory` (overrides SCRATCH_DIR)")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "do not log progress to stderr")

	cmd.AddCommand(newBatchCommand(&opts))
	return cmd
}

// loadConfig reads .env and the environment, then applies flags that were
// set explicitly.
func loadConfig(cmd *cobra.Command, opts globalOptions) (config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, fmt.Errorf("load .env: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("keep-scratch") {
		os.Setenv("KEEP_SCRATCH", fmt.Sprint(opts.KeepScratch))
	}
	if flags.Changed("tolerance") {
		os.Setenv("SALVAGE_TOLERANCE", fmt.Sprint(opts.Tolerance))
	}
	if flags.Changed("scratch-dir") {
		os.Setenv("SCRATCH_DIR", opts.ScratchDir)
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, opts globalOptions) *log.Logger {
	if opts.Quiet {
		return log.New(io.Discard, "", 0)
	}
	return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
}

func runSingle(ctx context.Context, cmd *cobra.Command, opts globalOptions, bucket, key string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, newLogger(cmd, opts))
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Orchestrator.Run(ctx, bucket, key)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
