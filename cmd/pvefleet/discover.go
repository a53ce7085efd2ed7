package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvefleet/pvefleet/internal/discover"
)

func newDiscoverCmd() *cobra.Command {
	var (
		port        int
		concurrency int
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "discover <cidr>",
		Short: "Scan a subnet for SSH-reachable nodes",
		Long: `Scans the CIDR range for hosts with an open SSH port. The output is
one address per line, suitable for use as a host list file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hosts, err := discover.CIDRScan(cmd.Context(), args[0], port, concurrency, timeout)
			if err != nil {
				return err
			}
			for _, h := range hosts {
				fmt.Println(h.Address)
			}
			log.WithField("count", len(hosts)).Info("scan complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 22, "TCP port to probe")
	cmd.Flags().IntVar(&concurrency, "concurrency", 128, "parallel dials")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Second, "per-host dial timeout")
	return cmd
}
