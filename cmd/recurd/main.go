// recurd computes recurring task occurrences and serves the task planner.
package main

import (
	"os"

	"github.com/cyp0633/librecur/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
