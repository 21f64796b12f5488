package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"rastersalvage/internal/app"

	"github.com/spf13/cobra"
)

type batchOptions struct {
	KeysFile    string
	Concurrency int
}

func newBatchCommand(global *globalOptions) *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "batch [flags] <bucket> [key ...]",
		Short: "salvages many objects of one bucket",
		Long: `
Runs every key as an independent salvage. A failing key is reported and does
not stop the others. Keys come from the arguments and from --keys-file, one
per line ("-" reads stdin).
`,
		Args:          cobra.MinimumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := collectKeys(cmd.InOrStdin(), args[1:], opts.KeysFile)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				return fmt.Errorf("no keys given")
			}
			return runBatch(cmd, *global, opts, args[0], keys)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.KeysFile, "keys-file", "", "read keys from `file`, one per line")
	flags.IntVarP(&opts.Concurrency, "concurrency", "j", 0, "parallel runs (overrides BATCH_CONCURRENCY)")
	return cmd
}

func runBatch(cmd *cobra.Command, global globalOptions, opts batchOptions, bucket string, keys []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, global)
	if err != nil {
		return err
	}
	if opts.Concurrency > 0 {
		cfg.BatchConcurrency = opts.Concurrency
	}

	a, err := app.New(ctx, cfg, newLogger(cmd, global))
	if err != nil {
		return err
	}
	defer a.Close()

	summary, runErr := a.Batch.Run(ctx, bucket, keys)
	if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("%d of %d objects failed: %w", summary.Rejected+summary.Failed, summary.Objects, runErr)
	}
	return nil
}

// collectKeys merges positional keys with the keys file, dropping blanks,
// comments and duplicates while keeping first-seen order.
func collectKeys(stdin io.Reader, args []string, keysFile string) ([]string, error) {
	keys := make([]string, 0, len(args))
	seen := make(map[string]struct{}, len(args))
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" || strings.HasPrefix(k, "#") {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	for _, k := range args {
		add(k)
	}
	if keysFile == "" {
		return keys, nil
	}

	var r io.Reader = stdin
	if keysFile != "-" {
		f, err := os.Open(keysFile)
		if err != nil {
			return nil, fmt.Errorf("open keys file: %w", err)
		}
		defer f.Close()
		r = f
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}
	return keys, nil
}
