package cli

import (
	"fmt"

	"heartprep/internal/prepare"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type prepareFlags struct {
	outputDir     string
	testSize      float64
	seed          int64
	handleUnknown string
}

func newPrepareCmd(a *app) *cobra.Command {
	var f prepareFlags

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Build the unsupervised and supervised train/test CSVs",
		Long: `Select the configured feature columns from the table, impute, scale and
one-hot encode them, split the supervised rows into stratified train and test
sets, and write five CSV files plus manifest.json to the output directory.

Files:
  prepared_unsupervised.csv  X_train_sup.csv  y_train_sup.csv
  X_test.csv                 y_test.csv       manifest.json

Examples:
  heartprep prepare
  heartprep prepare --output-dir ./out --seed 7 --test-size 0.25`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrepare(cmd, a, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.outputDir, "output-dir", "o", "", "artifact directory (default from prepare.output_dir)")
	fl.Float64Var(&f.testSize, "test-size", 0, "fraction of rows held out for testing")
	fl.Int64Var(&f.seed, "seed", 0, "random seed for the stratified split")
	fl.StringVar(&f.handleUnknown, "handle-unknown", "", "unknown category policy at transform time: ignore|error")
	return cmd
}

func runPrepare(cmd *cobra.Command, a *app, f prepareFlags) error {
	cfg := a.cfg
	fl := cmd.Flags()
	if fl.Changed("output-dir") {
		cfg.Prepare.OutputDir = f.outputDir
	}
	if fl.Changed("test-size") {
		cfg.Prepare.TestSize = f.testSize
	}
	if fl.Changed("seed") {
		cfg.Prepare.Seed = f.seed
	}
	if fl.Changed("handle-unknown") {
		cfg.Prepare.HandleUnknown = f.handleUnknown
	}
	if err := a.checkConfig(); err != nil {
		return err
	}

	flush := setupMetrics(cfg.Metrics, a.log)
	defer flush()

	res, err := prepare.Run(cmd.Context(), prepare.Options{
		Table:         cfg.DB.Table,
		OutputDir:     cfg.Prepare.OutputDir,
		TestSize:      cfg.Prepare.TestSize,
		Seed:          cfg.Prepare.Seed,
		HandleUnknown: cfg.Prepare.HandleUnknown,
		Features:      cfg.Features,
	}, a.opener(), a.log)
	if err != nil {
		a.log.Error("prepare: run failed", zap.Error(err))
		return err
	}

	m := res.Manifest
	fmt.Fprintf(a.stdout, "Wrote %d files to %s (run %s)\n", len(m.Artifacts)+1, cfg.Prepare.OutputDir, m.RunID)
	for _, art := range m.Artifacts {
		fmt.Fprintf(a.stdout, "  %-28s %6d x %-4d %s\n", art.File, art.Rows, art.Cols, art.XXH3)
	}
	return nil
}
