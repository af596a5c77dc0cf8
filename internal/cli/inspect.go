package cli

import (
	"encoding/json"
	"fmt"

	"heartprep/internal/loader"

	"github.com/spf13/cobra"
)

// inspectReport is the JSON document printed by inspect.
type inspectReport struct {
	Path       string                 `json:"path"`
	Columns    int                    `json:"columns"`
	Mapped     int                    `json:"mapped"`
	Duplicates []string               `json:"duplicates,omitempty"`
	Header     []loader.HeaderMapping `json:"header"`
}

func newInspectCmd(a *app) *cobra.Command {
	var (
		csvPath string
		pretty  bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show how the CSV header maps onto table columns",
		Long: `Read only the header row of the CSV file and print, as JSON, the
destination column each source header is renamed to. No database connection
is opened.

Exits non-zero when two headers land on the same column, which would make
the load fail.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("csv") {
				a.cfg.Loader.CSVPath = csvPath
			}
			return runInspect(a, pretty)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "input CSV file (default from loader.csv_path)")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "pretty-print JSON output")
	return cmd
}

func runInspect(a *app, pretty bool) error {
	lc := a.cfg.Loader
	enc, err := lc.CharEncoding()
	if err != nil {
		return err
	}
	header, err := loader.ReadHeader(lc.CSVPath, enc, lc.CommaRune())
	if err != nil {
		return err
	}

	rep := inspectReport{
		Path:    lc.CSVPath,
		Columns: len(header),
		Header:  loader.Inspect(header, a.cfg.Features),
	}
	for _, m := range rep.Header {
		if m.Mapped {
			rep.Mapped++
		}
		if m.Duplicate {
			rep.Duplicates = append(rep.Duplicates, m.Target)
		}
	}

	out := json.NewEncoder(a.stdout)
	if pretty {
		out.SetIndent("", "  ")
	}
	if err := out.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if len(rep.Duplicates) > 0 {
		return fmt.Errorf("inspect: %d header(s) rename onto an existing column: %v", len(rep.Duplicates), rep.Duplicates)
	}
	return nil
}
