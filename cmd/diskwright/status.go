package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend load states",
	Long: `Show which storage backends loaded, which failed, and the operations
each loaded backend supports.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		f, err := newFormatter()
		if err != nil {
			return err
		}

		out, err := f.FormatStates(rt.registry.States())
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}
