package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/blackcoderx/probe/pkg/collection"
	"github.com/blackcoderx/probe/pkg/runner"
	"github.com/spf13/viper"
)

// Config is the resolved configuration for one pipeline run. It is built
// once from viper and passed to every component.
type Config struct {
	// BaseDir is the .probe folder holding assertions and environments.
	BaseDir string
	// Source is the collection file path or URL.
	Source string
	// Environment names a YAML file under BaseDir/environments.
	Environment string

	Reporters      []string
	JSONReport     string
	HTMLReport     string
	MutationMode   collection.Mode
	AssertionsFile string
	Timeout        time.Duration
	Newman         string

	InPlace   bool
	AssumeYes bool
	DryRun    bool
	Pretty    bool
	Verbose   bool

	FetchRetries       int
	FetchRetryInterval time.Duration

	Auth AuthConfig
}

// AuthConfig controls the login step run before the main collection.
type AuthConfig struct {
	// LoginSource is the login collection. Auth mode is off when empty.
	LoginSource  string
	AccountID    string
	HeaderMarker string
	FooterMarker string
}

// Enabled reports whether a login collection is configured.
func (a AuthConfig) Enabled() bool {
	return strings.TrimSpace(a.LoginSource) != ""
}

// Config keys, shared by the config file, PROBE_* env vars and CLI flags.
const (
	KeySource          = "source"
	KeyEnvironment     = "environment"
	KeyReporters       = "reporters"
	KeyJSONReport      = "json_report"
	KeyHTMLReport      = "html_report"
	KeyMutationMode    = "mutation_mode"
	KeyAssertionsFile  = "assertions_file"
	KeyTimeoutSeconds  = "timeout_seconds"
	KeyNewman          = "newman"
	KeyInPlace         = "in_place"
	KeyAssumeYes       = "yes"
	KeyDryRun          = "dry_run"
	KeyPretty          = "pretty"
	KeyVerbose         = "verbose"
	KeyFetchRetries    = "fetch.retries"
	KeyFetchIntervalMS = "fetch.retry_interval_ms"
	KeyLoginSource     = "auth.login_source"
	KeyAccountID       = "auth.account_id"
	KeyHeaderMarker    = "auth.header_marker"
	KeyFooterMarker    = "auth.footer_marker"
)

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyReporters, []string{runner.ReporterJSON, runner.ReporterHTML})
	v.SetDefault(KeyJSONReport, "report.json")
	v.SetDefault(KeyHTMLReport, "report.html")
	v.SetDefault(KeyMutationMode, string(collection.ModeAppend))
	v.SetDefault(KeyTimeoutSeconds, 300)
	v.SetDefault(KeyNewman, runner.DefaultBinary)
	v.SetDefault(KeyFetchRetries, 2)
	v.SetDefault(KeyFetchIntervalMS, 1000)
	v.SetDefault(KeyAccountID, collection.DefaultAccountID)
}

// LoadConfig resolves a Config from v and validates it.
func LoadConfig(v *viper.Viper, baseDir string) (*Config, error) {
	mode, err := collection.ParseMode(v.GetString(KeyMutationMode))
	if err != nil {
		return nil, configError(err.Error())
	}

	cfg := &Config{
		BaseDir:            baseDir,
		Source:             strings.TrimSpace(v.GetString(KeySource)),
		Environment:        v.GetString(KeyEnvironment),
		Reporters:          normalizeReporters(v.GetStringSlice(KeyReporters)),
		JSONReport:         v.GetString(KeyJSONReport),
		HTMLReport:         v.GetString(KeyHTMLReport),
		MutationMode:       mode,
		AssertionsFile:     v.GetString(KeyAssertionsFile),
		Timeout:            time.Duration(v.GetInt(KeyTimeoutSeconds)) * time.Second,
		Newman:             v.GetString(KeyNewman),
		InPlace:            v.GetBool(KeyInPlace),
		AssumeYes:          v.GetBool(KeyAssumeYes),
		DryRun:             v.GetBool(KeyDryRun),
		Pretty:             v.GetBool(KeyPretty),
		Verbose:            v.GetBool(KeyVerbose),
		FetchRetries:       v.GetInt(KeyFetchRetries),
		FetchRetryInterval: time.Duration(v.GetInt(KeyFetchIntervalMS)) * time.Millisecond,
		Auth: AuthConfig{
			LoginSource:  strings.TrimSpace(v.GetString(KeyLoginSource)),
			AccountID:    v.GetString(KeyAccountID),
			HeaderMarker: v.GetString(KeyHeaderMarker),
			FooterMarker: v.GetString(KeyFooterMarker),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later in the run.
func (c *Config) Validate() error {
	if c.Source == "" {
		return configError("no collection source configured (set 'source' or pass --source)")
	}
	if v := c.Timeout; v < 0 {
		return configError(fmt.Sprintf("timeout_seconds must not be negative, got %d", int(v.Seconds())))
	}
	if c.FetchRetries < 0 {
		return configError("fetch.retries must not be negative")
	}

	hasJSON := false
	for _, r := range c.Reporters {
		switch r {
		case runner.ReporterJSON:
			hasJSON = true
		case runner.ReporterHTML, runner.ReporterCLI:
		default:
			return configError(fmt.Sprintf("unknown reporter '%s' (use: json, html, cli)", r))
		}
	}
	if !hasJSON {
		return configError("reporters must include json; the summary is read from the JSON report")
	}
	if c.JSONReport == "" {
		return configError("json_report path is empty")
	}
	return nil
}

// HasReporter reports whether name is among the configured reporters.
func (c *Config) HasReporter(name string) bool {
	for _, r := range c.Reporters {
		if r == name {
			return true
		}
	}
	return false
}

// normalizeReporters accepts both list values and a single comma-separated
// string, which is how they arrive from env vars and flags.
func normalizeReporters(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, item := range in {
		for _, r := range strings.Split(item, ",") {
			r = strings.ToLower(strings.TrimSpace(r))
			if r == "" || seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
