package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfarrand/diskwright/internal/btrfs"
	"github.com/jfarrand/diskwright/internal/registry"
	"github.com/jfarrand/diskwright/pkg/backend"
)

var btrfsCmd = &cobra.Command{
	Use:   "btrfs",
	Short: "Inspect btrfs volumes",
}

var btrfsSnapshotsOnly bool

func init() {
	btrfsCmd.AddCommand(btrfsSubvolumesCmd)
	btrfsCmd.AddCommand(btrfsDevicesCmd)
	btrfsCmd.AddCommand(btrfsInfoCmd)

	btrfsSubvolumesCmd.Flags().BoolVar(&btrfsSnapshotsOnly, "snapshots", false, "list only snapshot subvolumes")
}

var btrfsSubvolumesCmd = &cobra.Command{
	Use:   "subvolumes <mountpoint>",
	Short: "List subvolumes of a mounted btrfs volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		list, err := registry.Entry[func(context.Context, string, bool) ([]*btrfs.SubvolumeInfo, error)](rt.registry, backend.Btrfs, "list_subvolumes")
		if err != nil {
			return err
		}
		subvols, err := list(cmd.Context(), args[0], btrfsSnapshotsOnly)
		if err != nil {
			return err
		}

		if len(subvols) == 0 {
			fmt.Println("No subvolumes found")
			return nil
		}
		fmt.Printf("%-8s %-8s %s\n", "ID", "PARENT", "PATH")
		for _, sv := range subvols {
			fmt.Printf("%-8d %-8d %s\n", sv.ID, sv.ParentID, sv.Path)
		}
		return nil
	},
}

var btrfsDevicesCmd = &cobra.Command{
	Use:   "devices <device>",
	Short: "List member devices of a btrfs volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		list, err := registry.Entry[func(context.Context, string) ([]*btrfs.DeviceInfo, error)](rt.registry, backend.Btrfs, "list_devices")
		if err != nil {
			return err
		}
		devices, err := list(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%-6s %-14s %-14s %s\n", "ID", "SIZE", "USED", "PATH")
		for _, d := range devices {
			fmt.Printf("%-6d %-14d %-14d %s\n", d.ID, d.Size, d.Used, d.Path)
		}
		return nil
	},
}

var btrfsInfoCmd = &cobra.Command{
	Use:   "info <device>",
	Short: "Show filesystem information for a btrfs volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		info, err := registry.Entry[func(context.Context, string) (*btrfs.FilesystemInfo, error)](rt.registry, backend.Btrfs, "filesystem_info")
		if err != nil {
			return err
		}
		fs, err := info(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Label:   %s\n", fs.Label)
		fmt.Printf("UUID:    %s\n", fs.UUID)
		fmt.Printf("Devices: %d\n", fs.NumDevices)
		fmt.Printf("Used:    %d\n", fs.Used)
		return nil
	},
}
