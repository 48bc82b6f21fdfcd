//go:build !test

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/preinstall/internal/partition"
)

func planCommand(opts *options) *cobra.Command {
	var (
		device string
		blocks uint64
		sizes  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the default volume layout for a disk and whether it fits",
		Example: "  preinstall plan --device /dev/sda --blocks 488386584\n" +
			"  preinstall plan --device sda --blocks 41943040 --size home=2000 --size tmp=1000",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			planner, err := cfg.Planner()
			if err != nil {
				return err
			}

			disk := partition.ProbedDisk{Device: device, Blocks: blocks}
			layout := planner.NewLayout(disk.Name(), disk.AvailableMB())
			if errs := layout.ApplySizes(sizes); len(errs) > 0 {
				msgs := make([]string, len(errs))
				for i, e := range errs {
					msgs[i] = e.Error()
				}
				return fmt.Errorf("invalid sizes: %s", strings.Join(msgs, "; "))
			}
			layout = planner.Evaluate(layout)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, disk.Label())

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VOLUME\tMOUNT\tSIZE (MB)\tSIZE")
			for _, v := range layout.Volumes {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", v.Name, v.MountPoint, v.SizeMB, mbString(v.SizeMB))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(out, "\navailable: %d MB (%s)\n", layout.AvailableMB, mbString(layout.AvailableMB))
			fmt.Fprintf(out, "required:  %d MB (%s, %.0f%% overhead)\n", layout.RequiredMB, mbString(layout.RequiredMB), planner.Overhead()*100)
			if planner.Fits(layout) {
				fmt.Fprintf(out, "fits with %d MB to spare\n", layout.SlackMB)
				return nil
			}
			return fmt.Errorf("layout does not fit: %d MB required, %d MB available", layout.RequiredMB, layout.AvailableMB)
		},
	}
	cmd.Flags().StringVar(&device, "device", "sda", "install device")
	cmd.Flags().Uint64Var(&blocks, "blocks", 0, "device size in 1 KiB blocks as reported by sfdisk -s")
	cmd.Flags().StringToStringVar(&sizes, "size", nil, "override a volume size in MB (name=size)")
	_ = cmd.MarkFlagRequired("blocks")
	return cmd
}

// mbString renders a size in MB the way df -h would.
func mbString(mb int64) string {
	if mb < 0 {
		return "-" + humanize.IBytes(uint64(-mb)<<20)
	}
	return humanize.IBytes(uint64(mb) << 20)
}
