package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfarrand/diskwright/internal/lvm"
	"github.com/jfarrand/diskwright/internal/registry"
	"github.com/jfarrand/diskwright/pkg/backend"
)

var pvCmd = &cobra.Command{
	Use:   "pv",
	Short: "Manage LVM physical volumes",
}

func init() {
	pvCmd.AddCommand(pvListCmd)
	pvCmd.AddCommand(pvCreateCmd)
	pvCmd.AddCommand(pvRemoveCmd)
}

var pvListCmd = &cobra.Command{
	Use:   "list",
	Short: "List physical volumes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		pvs, err := registry.Entry[func(context.Context) ([]*lvm.PVInfo, error)](rt.registry, backend.LVM, "pvs")
		if err != nil {
			return err
		}
		infos, err := pvs(cmd.Context())
		if err != nil {
			return err
		}

		f, err := newFormatter()
		if err != nil {
			return err
		}
		out, err := f.FormatPVs(infos)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var pvCreateCmd = &cobra.Command{
	Use:   "create <device>",
	Short: "Initialize a device as a physical volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		create, err := registry.Entry[func(context.Context, string, uint64, uint64) error](rt.registry, backend.LVM, "pvcreate")
		if err != nil {
			return err
		}
		if err := create(cmd.Context(), args[0], 0, 0); err != nil {
			return err
		}
		fmt.Printf("Physical volume %s created\n", args[0])
		return nil
	},
}

var pvRemoveCmd = &cobra.Command{
	Use:   "remove <device>",
	Short: "Remove a physical volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		remove, err := registry.Entry[func(context.Context, string) error](rt.registry, backend.LVM, "pvremove")
		if err != nil {
			return err
		}
		if err := remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Physical volume %s removed\n", args[0])
		return nil
	},
}
