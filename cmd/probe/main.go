package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/blackcoderx/probe/pkg/core"
	"github.com/blackcoderx/probe/pkg/ui"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	noColor bool
	printer = ui.NewPrinter(os.Stdout, os.Stderr, false)
	rootCmd = &cobra.Command{
		Use:   "probe",
		Short: "PROBE - assertion injection and newman runs for Postman collections",
		Long: `PROBE loads a Postman collection, injects a standard set of test assertions
into every request, optionally logs in first and carries the session cookie,
then runs the collection with newman and prints a summary of the report.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if it exists (optional, warn if malformed)
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "Warning: Failed to load .env file: %v\n", err)
			}
			plain := noColor || os.Getenv("NO_COLOR") != ""
			printer = ui.NewPrinter(os.Stdout, os.Stderr, plain)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .probe/config.json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable styled output")
	rootCmd.PersistentFlags().StringP("env", "e", "", "environment from .probe/environments to use")
	_ = viper.BindPFlag(core.KeyEnvironment, rootCmd.PersistentFlags().Lookup("env"))
}

func initConfig() {
	core.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(core.ProbeFolderName)
		viper.SetConfigType("json")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("PROBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		core.PrintError(printer, err)
		os.Exit(core.GetExitCode(err))
	}
}
