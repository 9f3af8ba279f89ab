package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/blackcoderx/probe/pkg/collection"
	"github.com/blackcoderx/probe/pkg/runner"
	"github.com/blackcoderx/probe/pkg/storage"
)

const ProbeFolderName = ".probe"

// ConfigFileName is the config file inside the .probe folder.
const ConfigFileName = "config.json"

// fileConfig is the shape of .probe/config.json written on init.
type fileConfig struct {
	Source         string     `json:"source"`
	Environment    string     `json:"environment"`
	Reporters      []string   `json:"reporters"`
	JSONReport     string     `json:"json_report"`
	HTMLReport     string     `json:"html_report"`
	MutationMode   string     `json:"mutation_mode"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	Newman         string     `json:"newman"`
	InPlace        bool       `json:"in_place"`
	Fetch          fetchBlock `json:"fetch"`
	Auth           authBlock  `json:"auth"`
}

type fetchBlock struct {
	Retries         int `json:"retries"`
	RetryIntervalMS int `json:"retry_interval_ms"`
}

type authBlock struct {
	LoginSource string `json:"login_source"`
	AccountID   string `json:"account_id"`
}

// InitializeProbeFolder creates the .probe directory under root with a
// default config, assertion set and dev environment. Existing files are
// left alone, so it is safe to run repeatedly.
func InitializeProbeFolder(root string, out io.Writer) (string, error) {
	base := filepath.Join(root, ProbeFolderName)

	if _, err := os.Stat(base); os.IsNotExist(err) {
		fmt.Fprintln(out, "Initializing .probe folder...")
		if err := os.Mkdir(base, 0755); err != nil {
			return "", fmt.Errorf("failed to create .probe folder: %w", err)
		}
	}

	if err := ensureFile(filepath.Join(base, ConfigFileName), createDefaultConfig); err != nil {
		return "", err
	}
	if err := ensureFile(storage.GetAssertionsPath(base), createDefaultAssertions); err != nil {
		return "", err
	}
	if err := ensureDir(storage.GetEnvironmentsDir(base)); err != nil {
		return "", err
	}
	if err := ensureFile(storage.GetEnvironmentPath(base, "dev"), createDefaultEnvironment); err != nil {
		return "", err
	}

	return base, nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return nil
}

func ensureFile(path string, create func(string) error) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}
	return create(path)
}

func createDefaultEnvironment(path string) error {
	envContent := `# Development environment
# Values are exported to newman with --environment, e.g.:
# BASE_URL: http://localhost:3000
# PASSWORD: "{{env:PROBE_PASSWORD}}"
`
	if err := os.WriteFile(path, []byte(envContent), 0644); err != nil {
		return fmt.Errorf("failed to write dev environment: %w", err)
	}
	return nil
}

func createDefaultAssertions(path string) error {
	return storage.SaveAssertions(storage.AssertionSet{Blocks: storage.DefaultAssertions()}, path)
}

func createDefaultConfig(path string) error {
	config := fileConfig{
		Reporters:      []string{runner.ReporterJSON, runner.ReporterHTML},
		JSONReport:     "report.json",
		HTMLReport:     "report.html",
		MutationMode:   string(collection.ModeAppend),
		TimeoutSeconds: 300,
		Newman:         runner.DefaultBinary,
		Fetch:          fetchBlock{Retries: 2, RetryIntervalMS: 1000},
		Auth:           authBlock{AccountID: collection.DefaultAccountID},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
