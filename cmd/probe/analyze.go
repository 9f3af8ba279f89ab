package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blackcoderx/probe/pkg/core"
	"github.com/blackcoderx/probe/pkg/runner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	analyzeCmd.Flags().Bool("pretty", false, "render the summary as markdown")
	extractCmd.Flags().String("account-id", "", "account_id sent in the session cookie")
	rootCmd.AddCommand(analyzeCmd, extractCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [report]",
	Short: "Print the summary of a newman JSON report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString(core.KeyJSONReport)
		if len(args) == 1 {
			path = args[0]
		}
		if strings.Contains(path, runner.RunIDPlaceholder) {
			return fmt.Errorf("report path %s has a %s placeholder; pass the report file explicitly", path, runner.RunIDPlaceholder)
		}

		s, err := core.AnalyzeReport(path)
		if err != nil {
			return err
		}
		pretty, _ := cmd.Flags().GetBool("pretty")
		core.PrintSummary(printer, s, pretty || viper.GetBool(core.KeyPretty))
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [transcript]",
	Short: "Build the session cookie from saved newman --verbose output",
	Long: `Extract reads newman --verbose console output from a file, or from stdin
when no file or "-" is given, and prints the Cookie header built from the
access and refresh tokens in the last response panel that carries both.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 0 || args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read transcript: %w", err)
		}

		accountID, _ := cmd.Flags().GetString("account-id")
		if accountID == "" {
			accountID = viper.GetString(core.KeyAccountID)
		}

		cookie, err := core.ExtractCookie(string(data), core.AuthConfig{
			AccountID:    accountID,
			HeaderMarker: viper.GetString(core.KeyHeaderMarker),
			FooterMarker: viper.GetString(core.KeyFooterMarker),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(printer.Out(), "Cookie: %s\n", cookie)
		return nil
	},
}
