//go:build !test

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/preinstall/internal/ipcalc"
	"github.com/jbweber/homelab/preinstall/internal/partition"
)

func gatewayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway ADDRESS MASK",
		Short: "Derive the netmask and default gateway for an address",
		Long: "MASK is either a dotted netmask or a prefix length. The gateway is\n" +
			"the first host address of the network.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ipcalc.IsValidAddress(args[0]) {
				return fmt.Errorf("%s: %s", args[0], ipcalc.Classify(args[0]))
			}
			d := ipcalc.DeriveGatewayAndMask(args[0], args[1])
			if !d.Resolved {
				return fmt.Errorf("cannot derive a gateway from %s %s", args[0], args[1])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mask:    %s (/%d)\n", d.Mask, d.Prefix)
			fmt.Fprintf(out, "gateway: %s\n", d.Gateway)
			return nil
		},
	}
}

func convertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert VALUE FROM TO",
		Short: "Convert a disk size between BLK, MB and GB",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[0], err)
			}
			from, err := partition.ParseUnit(args[1])
			if err != nil {
				return err
			}
			to, err := partition.ParseUnit(args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), partition.Convert(value, from, to))
			return nil
		},
	}
}
