package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfarrand/diskwright/internal/lvm"
	"github.com/jfarrand/diskwright/internal/registry"
	"github.com/jfarrand/diskwright/pkg/backend"
)

var vgCmd = &cobra.Command{
	Use:   "vg",
	Short: "Manage LVM volume groups",
}

func init() {
	vgCmd.AddCommand(vgListCmd)
	vgCmd.AddCommand(vgCreateCmd)
	vgCmd.AddCommand(vgRemoveCmd)
}

var vgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List volume groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		vgs, err := registry.Entry[func(context.Context) ([]*lvm.VGInfo, error)](rt.registry, backend.LVM, "vgs")
		if err != nil {
			return err
		}
		infos, err := vgs(cmd.Context())
		if err != nil {
			return err
		}

		f, err := newFormatter()
		if err != nil {
			return err
		}
		out, err := f.FormatVGs(infos)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var vgCreateCmd = &cobra.Command{
	Use:   "create <name> <pv>...",
	Short: "Create a volume group from physical volumes",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		create, err := registry.Entry[func(context.Context, string, []string, uint64) error](rt.registry, backend.LVM, "vgcreate")
		if err != nil {
			return err
		}
		if err := create(cmd.Context(), args[0], args[1:], 0); err != nil {
			return err
		}
		fmt.Printf("Volume group %s created\n", args[0])
		return nil
	},
}

var vgRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a volume group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		remove, err := registry.Entry[func(context.Context, string) error](rt.registry, backend.LVM, "vgremove")
		if err != nil {
			return err
		}
		if err := remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Volume group %s removed\n", args[0])
		return nil
	},
}
