package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jfarrand/diskwright/internal/output"
	"github.com/jfarrand/diskwright/internal/version"
)

var (
	flagConfig    string
	flagOutput    string
	flagNoHeaders bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "diskwright",
	Short: "Diskwright - storage management over LVM, btrfs, LUKS and swap",
	Long: `Diskwright manages block storage through the system's native tools
(lvm, btrfs-progs, cryptsetup, mkswap) behind one uniform interface.

Backends are discovered at startup; a missing tool disables its backend
without affecting the others. Run 'diskwright status' to see what loaded.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return output.ValidateFormat(flagOutput)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "output format (table, yaml, json)")
	rootCmd.PersistentFlags().BoolVar(&flagNoHeaders, "no-headers", false, "omit headers in table output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pvCmd)
	rootCmd.AddCommand(vgCmd)
	rootCmd.AddCommand(lvCmd)
	rootCmd.AddCommand(btrfsCmd)
	rootCmd.AddCommand(historyCmd)
}
