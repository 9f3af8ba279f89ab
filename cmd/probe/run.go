package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/blackcoderx/probe/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	f := runCmd.Flags()
	f.StringP("source", "s", "", "collection file path or URL")
	f.String("login", "", "login collection to run first for session tokens")
	f.String("account-id", "", "account_id sent in the session cookie")
	f.StringP("mode", "m", "", "mutation mode: append or replace")
	f.StringP("assertions", "a", "", "assertion set YAML (default .probe/assertions.yaml)")
	f.String("reporters", "", "comma-separated newman reporters (json is required)")
	f.String("json-report", "", "JSON report path; {run} expands to a unique run id")
	f.String("html-report", "", "HTML report path; {run} expands to a unique run id")
	f.Int("timeout", 0, "seconds to wait for newman before giving up")
	f.String("newman", "", "newman executable")
	f.Bool("in-place", false, "write the updated collection back to its source file")
	f.BoolP("yes", "y", false, "do not ask before overwriting the source file")
	f.Bool("dry-run", false, "show the collection diff without running newman")
	f.Bool("pretty", false, "render the summary as markdown")
	f.BoolP("verbose", "v", false, "pass --verbose to newman")

	bind := map[string]string{
		"source":      core.KeySource,
		"login":       core.KeyLoginSource,
		"account-id":  core.KeyAccountID,
		"mode":        core.KeyMutationMode,
		"assertions":  core.KeyAssertionsFile,
		"reporters":   core.KeyReporters,
		"json-report": core.KeyJSONReport,
		"html-report": core.KeyHTMLReport,
		"timeout":     core.KeyTimeoutSeconds,
		"newman":      core.KeyNewman,
		"in-place":    core.KeyInPlace,
		"yes":         core.KeyAssumeYes,
		"dry-run":     core.KeyDryRun,
		"pretty":      core.KeyPretty,
		"verbose":     core.KeyVerbose,
	}
	for flag, key := range bind {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [source]",
	Short: "Inject assertions into a collection and run it with newman",
	Long: `Run loads the collection, adds the configured assertion blocks to every
request's test script and runs it with newman. When a login collection is
configured it runs first, and the access and refresh tokens from its response
are sent as a Cookie header on every request of the main collection.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			viper.Set(core.KeySource, args[0])
		}

		cfg, err := core.LoadConfig(viper.GetViper(), core.ProbeFolderName)
		if err != nil {
			return err
		}

		p, err := core.NewPipeline(cfg, printer, core.WithConfirm(confirmOverwrite))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if cfg.DryRun {
			diff, err := p.DryRun(ctx)
			if err != nil {
				return err
			}
			if diff == "" {
				printer.Infof("No changes")
				return nil
			}
			fmt.Fprint(printer.Out(), diff)
			return nil
		}

		if cfg.Auth.Enabled() {
			_, err = p.RunWithAuth(ctx)
		} else {
			_, err = p.Run(ctx)
		}
		return err
	},
}
