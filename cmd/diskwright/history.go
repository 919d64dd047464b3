package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum entries to show (0 for default)")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded tool invocations",
	Long: `Show the journal of external tool invocations, newest first.

Every command diskwright runs against the system is recorded with its
argument vector, exit code and duration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.journal == nil {
			return errors.New("invocation journal unavailable")
		}

		entries, err := rt.journal.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		f, err := newFormatter()
		if err != nil {
			return err
		}
		out, err := f.FormatHistory(entries)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}
