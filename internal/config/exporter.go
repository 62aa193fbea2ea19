// Package config resolves exporter settings from the environment, CLI flags and defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vshulcz/prefect-exporter/internal/misc"
)

const (
	defaultPort           = 8080
	defaultInterval       = 30
	defaultLogLevel       = "info"
	defaultPrefectAPIURL  = "http://127.0.0.1:4200/api"
	defaultRequestTimeout = 10
	defaultEnvFile        = ".env"
)

type ExporterConfig struct {
	PrefectAPIURL    string
	PrefectAPIKey    string
	LogLevel         string
	AuditFile        string
	CheckDeployments []string
	Port             int
	Interval         time.Duration
	RequestTimeout   time.Duration
	HostMetrics      bool
}

// ListenAddress is the address the exposition server binds to (all interfaces).
func (c ExporterConfig) ListenAddress() string {
	return ":" + strconv.Itoa(c.Port)
}

// ENV > CLI > defaults. Variables from an optional .env file fill in
// anything the real environment leaves unset.
func LoadExporterConfig(args []string, out io.Writer) (ExporterConfig, error) {
	if out == nil {
		out = io.Discard
	}

	flags := flag.NewFlagSet("exporter", flag.ContinueOnError)
	flags.SetOutput(out)

	var (
		portOpt     int
		intervalOpt int
		timeoutOpt  int
		deployOpt   string
		levelOpt    string
		apiURLOpt   string
		apiKeyOpt   string
		hostOpt     bool
		auditOpt    string
	)

	flags.IntVar(&portOpt, "p", 0, fmt.Sprintf("EXPORTER_PORT, listen port, default: %d", defaultPort))
	flags.IntVar(&intervalOpt, "i", 0, fmt.Sprintf("EXPORTER_INTERVAL, poll interval in seconds, default: %d", defaultInterval))
	flags.IntVar(&timeoutOpt, "t", 0, fmt.Sprintf("EXPORTER_REQUEST_TIMEOUT, per-request timeout in seconds, default: %d", defaultRequestTimeout))
	flags.StringVar(&deployOpt, "d", "", "EXPORTER_CHECK_DEPLOYMENTS, comma separated flow names whose deployments must be ready")
	flags.StringVar(&levelOpt, "l", "", fmt.Sprintf("LOG_LEVEL, default: %s", defaultLogLevel))
	flags.StringVar(&apiURLOpt, "u", "", fmt.Sprintf("PREFECT_API_URL, default: %s", defaultPrefectAPIURL))
	flags.StringVar(&apiKeyOpt, "k", "", "PREFECT_API_KEY, bearer token for Prefect Cloud")
	flags.BoolVar(&hostOpt, "host", false, "EXPORTER_HOST_METRICS, expose host CPU/memory gauges")
	flags.StringVar(&auditOpt, "audit-file", "", "EXPORTER_AUDIT_FILE, append one JSON line per collection cycle to this file")

	if err := flags.Parse(args); err != nil {
		return ExporterConfig{}, err
	}

	if err := loadEnvFile(misc.Getenv("EXPORTER_ENV_FILE", defaultEnvFile)); err != nil {
		return ExporterConfig{}, err
	}

	port, err := FromEnvOrFlagPort("EXPORTER_PORT", portOpt, defaultPort)
	if err != nil {
		return ExporterConfig{}, err
	}

	interval, _ := FromEnvOrFlagDuration("EXPORTER_INTERVAL", intervalOpt, 0, defaultInterval)
	if interval <= 0 {
		return ExporterConfig{}, fmt.Errorf("interval must be > 0, got %v", interval)
	}

	timeout, _ := FromEnvOrFlagDuration("EXPORTER_REQUEST_TIMEOUT", timeoutOpt, 0, defaultRequestTimeout)
	if timeout <= 0 {
		return ExporterConfig{}, fmt.Errorf("request timeout must be > 0, got %v", timeout)
	}

	apiURL := strings.TrimRight(FromEnvOrFlag("PREFECT_API_URL", apiURLOpt, defaultPrefectAPIURL), "/")
	if u, err := url.ParseRequestURI(apiURL); err != nil || u.Host == "" {
		return ExporterConfig{}, fmt.Errorf("invalid prefect api url: %q", apiURL)
	}

	return ExporterConfig{
		Port:             port,
		Interval:         interval,
		RequestTimeout:   timeout,
		CheckDeployments: FromEnvOrFlagList("EXPORTER_CHECK_DEPLOYMENTS", deployOpt),
		LogLevel:         FromEnvOrFlag("LOG_LEVEL", levelOpt, defaultLogLevel),
		PrefectAPIURL:    apiURL,
		PrefectAPIKey:    FromEnvOrFlag("PREFECT_API_KEY", apiKeyOpt, ""),
		HostMetrics:      FromEnvOrFlagBool("EXPORTER_HOST_METRICS", hostOpt, false),
		AuditFile:        FromEnvOrFlag("EXPORTER_AUDIT_FILE", auditOpt, ""),
	}, nil
}

// loadEnvFile never overrides variables that are already set; a missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}
