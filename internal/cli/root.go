// Package cli realizes the scan/pypi CLI surface of spec §6 for
// compatibility, following the teacher's rootCmd + PersistentFlags shape
// almost unchanged — only the persistent flags and the command set differ,
// since this scanner's configuration surface is entirely different from
// the teacher's shell-policy gateway.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	configDir string
	logPath   string
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "sourceguard",
	Short: "SourceGuard - offline static malware scanner for source packages",
	Long: `SourceGuard compiles Python and JavaScript/TypeScript source into a closed
instruction set, projects each compiled unit into a token sequence, and scores
it with a pre-trained classifier — entirely offline, without ever executing
the scanned code.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Path to config directory (default: ~/.sourceguard)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to scan log file (default: <config-dir>/sourceguard.log)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress progress output")
}

func Execute() error {
	return rootCmd.Execute()
}
