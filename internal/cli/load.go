package cli

import (
	"fmt"

	"heartprep/internal/loader"

	"github.com/spf13/cobra"
)

type loadFlags struct {
	csvPath       string
	encoding      string
	comma         string
	progressEvery int
}

func newLoadCmd(a *app) *cobra.Command {
	var f loadFlags

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Insert every CSV row into the configured table",
		Long: `Read the CSV file, rename its header through features.rename_map, and
insert each row with one INSERT inside a single transaction.

The table must already exist. The load is all-or-nothing: the first failing
row rolls the transaction back and nothing is committed. The CSV is read and
validated before any connection is opened.

Examples:
  heartprep load --csv ./HF_data/Pak_Fais_HeartData.csv
  heartprep load --db-kind sqlite --db-dsn ./heart.db --table heart_data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd, a, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.csvPath, "csv", "", "input CSV file (default from loader.csv_path)")
	fl.StringVar(&f.encoding, "encoding", "", "input character set, e.g. utf-8 or windows-1250")
	fl.StringVar(&f.comma, "comma", "", "field delimiter")
	fl.IntVar(&f.progressEvery, "progress-every", 1000, "log progress after this many inserts (0 disables)")
	return cmd
}

func runLoad(cmd *cobra.Command, a *app, f loadFlags) error {
	cfg := a.cfg
	fl := cmd.Flags()
	if fl.Changed("csv") {
		cfg.Loader.CSVPath = f.csvPath
	}
	if fl.Changed("encoding") {
		cfg.Loader.Encoding = f.encoding
	}
	if fl.Changed("comma") {
		cfg.Loader.Comma = f.comma
	}
	if err := a.checkConfig(); err != nil {
		return err
	}
	enc, err := cfg.Loader.CharEncoding()
	if err != nil {
		return err
	}

	flush := setupMetrics(cfg.Metrics, a.log)
	defer flush()

	sum, err := loader.Run(cmd.Context(), loader.Options{
		CSVPath:       cfg.Loader.CSVPath,
		Table:         cfg.DB.Table,
		Encoding:      enc,
		Comma:         cfg.Loader.CommaRune(),
		Features:      cfg.Features,
		ProgressEvery: f.progressEvery,
	}, a.opener(), a.log)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Inserted %d rows into %s\n", sum.Rows, sum.Table)
	return nil
}
