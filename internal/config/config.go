// Package config defines the explicit configuration passed to the load and
// prepare jobs. Nothing in the pipeline reads process-wide constants; every
// tunable lives on Config with a documented default.
//
// Sources, lowest to highest precedence:
//
//  1. Default()
//  2. a YAML file (see configs/heartprep.yaml)
//  3. a .env file, for values not already present in the environment
//  4. HEARTPREP_* environment variables
//  5. CLI flags, applied by the caller after Load returns
//
// Example (trimmed):
//
//	db:
//	  kind: mysql
//	  host: localhost
//	  user: root
//	  name: ai_health_prototype
//	  table: heart_data
//	loader:
//	  csv_path: ./HF_data/Pak_Fais_HeartData.csv
//	prepare:
//	  output_dir: ./Pre_Process
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"heartprep/internal/features"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HEARTPREP_"

// Storage kinds understood by the storage factory.
const (
	KindMySQL    = "mysql"
	KindPostgres = "postgres"
	KindMSSQL    = "mssql"
	KindSQLite   = "sqlite"
)

// Config is the complete run configuration.
type Config struct {
	DB       DB           `yaml:"db"`
	Loader   Loader       `yaml:"loader"`
	Prepare  Prepare      `yaml:"prepare"`
	Features features.Set `yaml:"features"`
	Log      Log          `yaml:"log"`
	Metrics  Metrics      `yaml:"metrics"`
}

// DB describes the relational store.
type DB struct {
	// Kind selects the storage backend: mysql (default), postgres, mssql, sqlite.
	Kind string `yaml:"kind"`

	// Host, Port, User, Password and Name build the DSN when DSN is empty.
	// Port 0 means the backend's standard port. For sqlite, Name is the
	// database file path.
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`

	// DSN, when set, is passed to the driver verbatim.
	DSN string `yaml:"dsn"`

	// Table receives loaded rows and is read by prepare.
	Table string `yaml:"table"`
}

// Loader configures the CSV load job.
type Loader struct {
	CSVPath string `yaml:"csv_path"`
	// Encoding is the input character set: utf-8, windows-1250,
	// windows-1252, iso-8859-1 or iso-8859-2.
	Encoding string `yaml:"encoding"`
	// Comma is the field delimiter; only the first rune is used.
	Comma string `yaml:"comma"`
}

// Prepare configures the preprocessing job.
type Prepare struct {
	OutputDir string  `yaml:"output_dir"`
	TestSize  float64 `yaml:"test_size"`
	Seed      int64   `yaml:"seed"`
	// HandleUnknown is "ignore" (all-zero one-hot rows) or "error".
	HandleUnknown string `yaml:"handle_unknown"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Metrics selects an optional metrics backend.
type Metrics struct {
	// Backend is none (default), pushgateway or datadog.
	Backend        string `yaml:"backend"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	DatadogAddr    string `yaml:"datadog_addr"`
}

// Default returns the documented defaults. The password is intentionally
// empty; supply it through HEARTPREP_DB_PASSWORD or a .env file.
func Default() *Config {
	return &Config{
		DB: DB{
			Kind:  KindMySQL,
			Host:  "localhost",
			User:  "root",
			Name:  "ai_health_prototype",
			Table: "heart_data",
		},
		Loader: Loader{
			CSVPath:  "./HF_data/Pak_Fais_HeartData.csv",
			Encoding: "utf-8",
			Comma:    ",",
		},
		Prepare: Prepare{
			OutputDir:     "./Pre_Process",
			TestSize:      0.2,
			Seed:          42,
			HandleUnknown: "ignore",
		},
		Features: features.Default(),
		Log:      Log{Level: "info", Format: "json"},
		Metrics:  Metrics{Backend: "none", PushgatewayURL: "http://localhost:9091"},
	}
}

// Load builds a Config from defaults, the optional YAML file at path, the
// optional .env file at envFile, and getenv. Pass os.Getenv in production and
// a map-backed func in tests.
func Load(path, envFile string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decodeYAML(b, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	lookup := getenv
	if envFile != "" {
		fileVals, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("config: env file %s: %w", envFile, err)
		}
		lookup = func(k string) string {
			if v := getenv(k); v != "" {
				return v
			}
			return fileVals[k]
		}
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML decodes b over cfg, rejecting unknown keys. rename_map entries
// are merged onto the defaults; lists replace them.
func decodeYAML(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + key)); v != "" {
			*dst = v
		}
	}
	str("DB_KIND", &cfg.DB.Kind)
	str("DB_HOST", &cfg.DB.Host)
	str("DB_USER", &cfg.DB.User)
	str("DB_NAME", &cfg.DB.Name)
	str("DB_DSN", &cfg.DB.DSN)
	str("DB_TABLE", &cfg.DB.Table)
	str("CSV_PATH", &cfg.Loader.CSVPath)
	str("CSV_ENCODING", &cfg.Loader.Encoding)
	str("OUTPUT_DIR", &cfg.Prepare.OutputDir)
	str("HANDLE_UNKNOWN", &cfg.Prepare.HandleUnknown)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("METRICS_BACKEND", &cfg.Metrics.Backend)
	str("PUSHGATEWAY_URL", &cfg.Metrics.PushgatewayURL)
	str("DATADOG_ADDR", &cfg.Metrics.DatadogAddr)

	// Passwords may legitimately contain leading/trailing spaces.
	if v := getenv(EnvPrefix + "DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}

	if v := strings.TrimSpace(getenv(EnvPrefix + "DB_PORT")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sDB_PORT=%q: %w", EnvPrefix, v, err)
		}
		cfg.DB.Port = p
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "SEED")); v != "" {
		s, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %sSEED=%q: %w", EnvPrefix, v, err)
		}
		cfg.Prepare.Seed = s
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "TEST_SIZE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %sTEST_SIZE=%q: %w", EnvPrefix, v, err)
		}
		cfg.Prepare.TestSize = f
	}
	return nil
}

// ConnString returns the driver DSN for d.Kind. An explicit DSN wins.
func (d DB) ConnString() (string, error) {
	if d.DSN != "" {
		return d.DSN, nil
	}
	switch d.Kind {
	case KindMySQL:
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = hostPort(d.Host, d.Port, 3306)
		mc.DBName = d.Name
		return mc.FormatDSN(), nil

	case KindPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   hostPort(d.Host, d.Port, 5432),
			Path:   "/" + d.Name,
		}
		return u.String(), nil

	case KindMSSQL:
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(d.User, d.Password),
			Host:     hostPort(d.Host, d.Port, 1433),
			RawQuery: url.Values{"database": {d.Name}}.Encode(),
		}
		return u.String(), nil

	case KindSQLite:
		if d.Name == "" {
			return "", fmt.Errorf("config: sqlite requires db.name (file path)")
		}
		return d.Name, nil

	default:
		return "", fmt.Errorf("config: unsupported db.kind=%q", d.Kind)
	}
}

func hostPort(host string, port, def int) string {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = def
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
