// Command dbschemadiff compares two PostgreSQL or MariaDB schemas and
// generates the migration script to reconcile them.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "DBSCHEMADIFF"

// stdout/stderr are indirected through package vars so tests can capture
// command output without touching the real file descriptors.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

const ansiRed = "\033[31m"
const ansiReset = "\033[0m"

var rootCmd = &cobra.Command{
	Use:   "dbschemadiff",
	Short: "Compare and migrate PostgreSQL/MariaDB schemas",
	Long: `dbschemadiff loads two database schemas, normalizes cross-dialect
naming and type differences, computes a symmetric diff, and renders the
result as a migration script, a JSON report, or an AI review prompt.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(compareCmd, generateCmd, promptCmd)
}

func main() {
	os.Exit(run())
}

func run() int {
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "%s%s%s\n", ansiRed, err.Error(), ansiReset)
		return 1
	}
	return 0
}
