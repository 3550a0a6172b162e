// Command stackit runs the StackIt API and its maintenance tasks.
package main

import (
	"os"

	"stackit/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
