package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to operators but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the
// config, e.g. "db.kind" or "features.numeric".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate lints cfg without mutating it.
func Validate(cfg *Config) []Issue {
	var issues []Issue
	issues = append(issues, validateDB(cfg.DB)...)
	issues = append(issues, validateLoader(cfg.Loader)...)
	issues = append(issues, validatePrepare(cfg.Prepare)...)
	issues = append(issues, validateFeatures(cfg)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	return issues
}

func validateDB(d DB) []Issue {
	var issues []Issue
	switch d.Kind {
	case KindMySQL, KindPostgres, KindMSSQL, KindSQLite:
	case "":
		issues = append(issues, errIssue("db.kind", "db.kind must not be empty"))
	default:
		issues = append(issues, errIssue("db.kind",
			fmt.Sprintf("unsupported kind %q (want mysql, postgres, mssql or sqlite)", d.Kind)))
	}
	if strings.TrimSpace(d.Table) == "" {
		issues = append(issues, errIssue("db.table", "db.table must not be empty"))
	}
	if d.DSN == "" {
		if d.Kind == KindSQLite && d.Name == "" {
			issues = append(issues, errIssue("db.name", "sqlite requires db.name (file path)"))
		}
		if d.Kind != KindSQLite && d.Password == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "db.password",
				Message:  "no password configured; set " + EnvPrefix + "DB_PASSWORD if the server requires one",
			})
		}
	}
	if d.Port < 0 || d.Port > 65535 {
		issues = append(issues, errIssue("db.port", fmt.Sprintf("port %d out of range", d.Port)))
	}
	return issues
}

func validateLoader(l Loader) []Issue {
	var issues []Issue
	if _, err := lookupEncoding(l.Encoding); err != nil {
		issues = append(issues, errIssue("loader.encoding", err.Error()))
	}
	if len([]rune(l.Comma)) > 1 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "loader.comma",
			Message:  fmt.Sprintf("only the first rune of %q is used", l.Comma),
		})
	}
	return issues
}

func validatePrepare(p Prepare) []Issue {
	var issues []Issue
	if strings.TrimSpace(p.OutputDir) == "" {
		issues = append(issues, errIssue("prepare.output_dir", "output_dir must not be empty"))
	}
	if p.TestSize <= 0 || p.TestSize >= 1 {
		issues = append(issues, errIssue("prepare.test_size",
			fmt.Sprintf("test_size must be in (0, 1), got %v", p.TestSize)))
	}
	switch p.HandleUnknown {
	case "ignore", "error":
	default:
		issues = append(issues, errIssue("prepare.handle_unknown",
			fmt.Sprintf("handle_unknown must be ignore or error, got %q", p.HandleUnknown)))
	}
	return issues
}

func validateFeatures(cfg *Config) []Issue {
	var issues []Issue
	for _, err := range cfg.Features.Validate() {
		issues = append(issues, errIssue("features", err.Error()))
	}
	for _, f := range cfg.Features.Unassigned() {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "features.numeric",
			Message:  fmt.Sprintf("supervised feature %q is in neither numeric nor categorical and will be dropped", f),
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			return []Issue{errIssue("metrics.pushgateway_url", "pushgateway backend requires a URL")}
		}
	case "datadog":
		if m.DatadogAddr == "" {
			return []Issue{errIssue("metrics.datadog_addr", "datadog backend requires an agent address")}
		}
	default:
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown backend %q; metrics disabled", m.Backend),
		}}
	}
	return nil
}

func errIssue(path, msg string) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: msg}
}
