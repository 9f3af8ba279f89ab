package main

import (
	"errors"
	"os"

	"github.com/blackcoderx/probe/pkg/core"
	"github.com/blackcoderx/probe/pkg/runner"
	"github.com/blackcoderx/probe/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(doctorCmd, initCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that newman and the .probe folder are usable",
	RunE: func(cmd *cobra.Command, args []string) error {
		printer.Heading("PROBE doctor")
		failed := false

		r := runner.New(viper.GetString(core.KeyNewman), "", 0)
		if v, err := r.CheckVersion(cmd.Context(), runner.MinimumVersion); err != nil {
			printer.Errorf("newman: %v", err)
			failed = true
		} else {
			printer.Successf("newman %s", v)
		}

		base := core.ProbeFolderName
		if _, err := os.Stat(base); os.IsNotExist(err) {
			printer.Warnf("%s not found; run 'probe init' or rely on defaults", base)
		} else {
			printer.Successf("%s found", base)

			path := viper.GetString(core.KeyAssertionsFile)
			if path == "" {
				path = storage.GetAssertionsPath(base)
			}
			if blocks, err := storage.LoadAssertions(path); err != nil {
				printer.Errorf("assertions: %v", err)
				failed = true
			} else {
				printer.Successf("%d assertion block(s) in %s", len(blocks), path)
			}

			if envs, err := storage.ListEnvironments(base); err == nil && len(envs) > 0 {
				printer.Infof("environments: %v", envs)
			}
		}

		if src := viper.GetString(core.KeySource); src != "" {
			printer.Infof("source: %s", src)
		} else {
			printer.Warnf("no collection source configured")
		}

		if failed {
			return errors.New("doctor found problems")
		}
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .probe folder with default config, assertions and environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := core.InitializeProbeFolder(".", printer.Out())
		if err != nil {
			return err
		}
		printer.Successf("%s is ready", base)
		return nil
	},
}
