// Package version implements the version command.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskbeat/taskbeat/cmd/taskbeat/root"
)

func init() {
	root.RootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the taskbeat version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("taskbeat", root.Version)
		},
	})
}
