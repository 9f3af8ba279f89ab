package main

import (
	"fmt"
	"os"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
	"github.com/spf13/cobra"
)

// releaseRepo is the GitHub repository releases are published to.
const releaseRepo = "blackcoderx/probe"

func init() {
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update PROBE to the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		if version == "dev" {
			printer.Infof("You are running a development build of PROBE. Update is not supported.")
			return nil
		}

		current, err := semver.ParseTolerant(version)
		if err != nil {
			return fmt.Errorf("failed to parse current version '%s': %w", version, err)
		}

		latest, found, err := selfupdate.DetectLatest(releaseRepo)
		if err != nil {
			return fmt.Errorf("failed to detect latest version: %w", err)
		}
		if !found || latest.Version.LTE(current) {
			printer.Successf("Current version %s is the latest", current)
			return nil
		}

		ok, err := confirm(fmt.Sprintf("Update to %s?", latest.Version), "Update", "Cancel")
		if err != nil || !ok {
			return err
		}

		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("could not locate executable path: %w", err)
		}
		if err := selfupdate.UpdateTo(latest.AssetURL, exe); err != nil {
			return fmt.Errorf("failed to update binary: %w", err)
		}
		printer.Successf("Updated to version %s", latest.Version)
		return nil
	},
}
