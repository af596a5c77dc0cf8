package cli

import (
	"fmt"
	"strings"

	"heartprep/internal/config"
	"heartprep/internal/storage"

	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration without touching the database",
		Long: `Resolve the configuration from defaults, --config, --env-file, the
environment and flags, then report every problem found.

Exits non-zero when at least one error is reported; warnings alone pass.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return runValidate(a)
		},
	}
}

func runValidate(a *app) error {
	cfg := a.cfg
	issues := config.Validate(cfg)
	if cfg.DB.Kind != "" && !registered(cfg.DB.Kind) {
		issues = append(issues, config.Issue{
			Severity: config.SeverityError,
			Path:     "db.kind",
			Message:  fmt.Sprintf("no backend registered for %q (have %s)", cfg.DB.Kind, strings.Join(storage.ListKinds(), ", ")),
		})
	}

	w := a.stdout
	fmt.Fprintf(w, "db:       %s table=%s\n", cfg.DB.Kind, cfg.DB.Table)
	fmt.Fprintf(w, "loader:   %s (%s)\n", cfg.Loader.CSVPath, cfg.Loader.Encoding)
	fmt.Fprintf(w, "prepare:  %s test_size=%v seed=%d\n", cfg.Prepare.OutputDir, cfg.Prepare.TestSize, cfg.Prepare.Seed)
	fmt.Fprintf(w, "features: %d unsupervised, %d supervised, label=%s\n",
		len(cfg.Features.Unsupervised), len(cfg.Features.Supervised()), cfg.Features.Label)

	if len(issues) == 0 {
		fmt.Fprintln(w, "OK")
		return nil
	}
	for _, iss := range issues {
		fmt.Fprintln(w, iss.Error())
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration has errors")
	}
	return nil
}

func registered(kind string) bool {
	for _, k := range storage.ListKinds() {
		if k == kind {
			return true
		}
	}
	return false
}
