package main

import (
	"fmt"
	"os"

	"github.com/taskbeat/taskbeat/cmd/taskbeat/root"

	// Subcommands register themselves on the root command.
	_ "github.com/taskbeat/taskbeat/cmd/taskbeat/migrate"
	_ "github.com/taskbeat/taskbeat/cmd/taskbeat/run"
	_ "github.com/taskbeat/taskbeat/cmd/taskbeat/runs"
	_ "github.com/taskbeat/taskbeat/cmd/taskbeat/tasks"
	_ "github.com/taskbeat/taskbeat/cmd/taskbeat/version"
)

func main() {
	if err := root.GetRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
