// Command sourceguard is the thin entry point wiring internal/cli.Execute
// into the process's exit code, matching the teacher's own one-line main.
package main

import (
	"fmt"
	"os"

	"github.com/scanforge/sourceguard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
