// Package cli wires the heartprep subcommands (load, prepare, inspect,
// validate) onto cobra.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"heartprep/internal/config"
	"heartprep/internal/logging"
	"heartprep/internal/storage"
	_ "heartprep/internal/storage/all"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "heartprep"

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath     string
	envFile        string
	logLevel       string
	logFormat      string
	metricsBackend string
	dbKind         string
	dbDSN          string
	dbTable        string
}

// app carries the state resolved in PersistentPreRunE.
type app struct {
	flags  rootFlags
	getenv func(string) string
	stdout io.Writer

	cfg *config.Config
	log *zap.Logger
}

// Execute runs the command tree with args (without the program name).
func Execute(ctx context.Context, args []string) error {
	cmd := newRootCmd(os.Getenv, os.Stdout, os.Stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(getenv func(string) string, stdout, stderr io.Writer) *cobra.Command {
	a := &app{getenv: getenv, stdout: stdout}

	root := &cobra.Command{
		Use:   "heartprep",
		Short: "Load the heart-failure CSV into a database and prepare it for modeling",
		Long: `heartprep runs two independent batch jobs that meet only at the database:

  load      read the CSV, rename its columns, insert every row in one transaction
  prepare   query the table, impute/scale/encode, split train/test, write CSVs

Configuration sources, lowest to highest precedence: built-in defaults,
--config YAML file, --env-file, HEARTPREP_* environment variables, flags.

Exit Codes:
  0  - Success
  1  - Any failure (configuration, connection, insert, preprocessing)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&a.flags.envFile, "env-file", "", "dotenv file with HEARTPREP_* variables (process env wins)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug|info|warn|error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "log format: json|console")
	pf.StringVar(&a.flags.metricsBackend, "metrics-backend", "", "metrics backend: none|pushgateway|datadog")
	pf.StringVar(&a.flags.dbKind, "db-kind", "", "storage backend: mysql|postgres|mssql|sqlite")
	pf.StringVar(&a.flags.dbDSN, "db-dsn", "", "driver DSN; overrides host/port/user/password/name")
	pf.StringVar(&a.flags.dbTable, "table", "", "table to load into and prepare from")

	root.AddCommand(
		newLoadCmd(a),
		newPrepareCmd(a),
		newInspectCmd(a),
		newValidateCmd(a),
	)
	return root
}

// init loads configuration, applies persistent flags and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath, a.flags.envFile, a.getenv)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	set := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}
	set("log-level", &cfg.Log.Level, a.flags.logLevel)
	set("log-format", &cfg.Log.Format, a.flags.logFormat)
	set("metrics-backend", &cfg.Metrics.Backend, a.flags.metricsBackend)
	set("db-kind", &cfg.DB.Kind, a.flags.dbKind)
	set("db-dsn", &cfg.DB.DSN, a.flags.dbDSN)
	set("table", &cfg.DB.Table, a.flags.dbTable)
	a.cfg = cfg

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return err
	}
	a.log = log.With(zap.String("command", cmd.Name()))
	return nil
}

// opener returns a func that opens the configured repository.
func (a *app) opener() func(ctx context.Context) (storage.Repository, error) {
	return func(ctx context.Context) (storage.Repository, error) {
		dsn, err := a.cfg.DB.ConnString()
		if err != nil {
			return nil, err
		}
		return storage.New(ctx, storage.Config{
			Kind:  a.cfg.DB.Kind,
			DSN:   dsn,
			Table: a.cfg.DB.Table,
		})
	}
}

// checkConfig runs config.Validate, logs warnings, and fails on errors.
func (a *app) checkConfig() error {
	issues := config.Validate(a.cfg)
	var errs int
	for _, iss := range issues {
		if iss.Severity == config.SeverityWarning {
			a.log.Warn("config: "+iss.Message, zap.String("path", iss.Path))
			continue
		}
		errs++
		a.log.Error("config: "+iss.Message, zap.String("path", iss.Path))
	}
	if errs > 0 {
		return fmt.Errorf("invalid configuration: %d error(s); run 'heartprep validate' for details", errs)
	}
	return nil
}
