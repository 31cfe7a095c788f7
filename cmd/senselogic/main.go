// Command senselogic evaluates three-valued rules over sensor readings.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/senselogic/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
