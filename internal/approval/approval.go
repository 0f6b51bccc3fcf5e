// Package approval gates the pypi subcommand's staged-tarball scan behind an
// interactive confirmation, adapted from the teacher's command-approval
// prompt: same term.IsTerminal gate and bufio.Reader choice loop, now
// confirming "scan this freshly downloaded package" rather than "run this
// shell command".
package approval

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

type Result struct {
	Approved   bool
	UserAction string
}

// Prompt describes the staged package a scan is about to walk, so the
// confirmation can name exactly what was fetched and where it landed.
type Prompt struct {
	PackageName string
	Version     string
	StagedDir   string
}

// IsInteractive reports whether stdin is a terminal; on a non-interactive
// stdin, Ask auto-denies rather than blocking a script or CI job forever.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func Ask(p Prompt) Result {
	if !IsInteractive() {
		return Result{
			Approved:   false,
			UserAction: "auto_deny_non_interactive",
		}
	}

	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║              SCAN CONFIRMATION REQUIRED                      ║")
	fmt.Fprintln(os.Stderr, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "Package: %s", p.PackageName)
	if p.Version != "" {
		fmt.Fprintf(os.Stderr, " (%s)", p.Version)
	}
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "Staged at: %s\n", p.StagedDir)
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "This will statically compile and score the staged source. Nothing is executed.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  [s] Scan - proceed with the scan")
	fmt.Fprintln(os.Stderr, "  [d] Deny - abort without scanning")
	fmt.Fprintln(os.Stderr, "")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Fprint(os.Stderr, "Your choice [s/d]: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return Result{
				Approved:   false,
				UserAction: "error_reading_input",
			}
		}

		input = strings.TrimSpace(strings.ToLower(input))

		switch input {
		case "s", "scan", "yes", "y":
			return Result{
				Approved:   true,
				UserAction: "approve_once",
			}
		case "d", "deny", "no", "n":
			return Result{
				Approved:   false,
				UserAction: "deny",
			}
		default:
			fmt.Fprintln(os.Stderr, "Invalid input. Please enter 's' to scan or 'd' to deny.")
		}
	}
}
