// Z21ctl is a command line throttle for Roco/Fleischmann Z21 command
// stations.
//
// It talks the Z21 LAN protocol over UDP and provides track power
// control, locomotive driving, function outputs, turnout switching,
// decoder CV programming and a live telemetry monitor. Station
// addresses can be saved as named profiles so everyday commands need
// no flags.
//
// Usage:
//
//	z21ctl [command] [flags]
//
// See 'z21ctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/railctl/z21/internal/logging"
	"github.com/railctl/z21/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "z21ctl",
	Short: "Z21 Command Station Control Utility",
	Long: `A command line throttle for Roco/Fleischmann Z21 command stations.

Provides track power control, locomotive driving, function outputs,
turnout switching, decoder CV programming and a live telemetry monitor
over the Z21 LAN protocol.

Save a station profile once with 'z21ctl station add' and every other
command will use it automatically.`,
	Version: version.Version,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("z21ctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
