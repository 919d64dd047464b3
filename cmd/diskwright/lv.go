package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jfarrand/diskwright/internal/lvm"
	"github.com/jfarrand/diskwright/internal/registry"
	"github.com/jfarrand/diskwright/pkg/backend"
)

var lvCmd = &cobra.Command{
	Use:   "lv",
	Short: "Manage LVM logical volumes",
}

var lvRemoveForce bool

func init() {
	lvCmd.AddCommand(lvListCmd)
	lvCmd.AddCommand(lvCreateCmd)
	lvCmd.AddCommand(lvRemoveCmd)

	lvRemoveCmd.Flags().BoolVar(&lvRemoveForce, "force", false, "remove without confirmation")
}

var lvListCmd = &cobra.Command{
	Use:   "list <vg>",
	Short: "List logical volumes in a volume group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		lvs, err := registry.Entry[func(context.Context, string) ([]*lvm.LVInfo, error)](rt.registry, backend.LVM, "lvs")
		if err != nil {
			return err
		}
		infos, err := lvs(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		f, err := newFormatter()
		if err != nil {
			return err
		}
		out, err := f.FormatLVs(infos)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var lvCreateCmd = &cobra.Command{
	Use:   "create <vg> <name> <size-bytes>",
	Short: "Create a logical volume",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", args[2], err)
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		create, err := registry.Entry[func(context.Context, string, string, uint64, []string) error](rt.registry, backend.LVM, "lvcreate")
		if err != nil {
			return err
		}
		if err := create(cmd.Context(), args[0], args[1], size, nil); err != nil {
			return err
		}
		fmt.Printf("Logical volume %s/%s created\n", args[0], args[1])
		return nil
	},
}

var lvRemoveCmd = &cobra.Command{
	Use:   "remove <vg> <lv>",
	Short: "Remove a logical volume",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		remove, err := registry.Entry[func(context.Context, string, string, bool) error](rt.registry, backend.LVM, "lvremove")
		if err != nil {
			return err
		}
		if err := remove(cmd.Context(), args[0], args[1], lvRemoveForce); err != nil {
			return err
		}
		fmt.Printf("Logical volume %s/%s removed\n", args[0], args[1])
		return nil
	},
}
