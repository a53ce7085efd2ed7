package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pvefleet/pvefleet/internal/bench"
	"github.com/pvefleet/pvefleet/internal/burnin"
	"github.com/pvefleet/pvefleet/internal/report"
)

func newBenchCmd(opts *rootOpts) *cobra.Command {
	var reportDir string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run local hardware health checks and write a report",
		Long: `Measures network latency (ICMP echo per configured NIC/target pair),
disk throughput and I/O latency (direct I/O against each configured
path), and CPU hashing speed, compares each against the configured
thresholds, and prints a PASS/FAIL report. A plaintext copy is saved
to a timestamped file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			suite := bench.NewSuite(cfg.Bench, log)
			results, err := suite.Run(cmd.Context())
			if err != nil {
				return err
			}

			rep := report.New(results)
			color := term.IsTerminal(int(os.Stdout.Fd()))
			fmt.Print(rep.Render(color))

			dir := reportDir
			if dir == "" {
				dir = cfg.Bench.ReportDir
			}
			path, err := rep.WriteFile(dir)
			if err != nil {
				return err
			}
			fmt.Printf("\nreport saved to %s\n", path)

			if !results.AllOK() {
				return fmt.Errorf("health checks failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reportDir, "report", "", "directory for the report file (default from config)")
	return cmd
}

func newBurninCmd(opts *rootOpts) *cobra.Command {
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "burnin <hours>",
		Short: "Apply sustained load for a fixed number of hours",
		Long: `Runs the health checks first and refuses to start if any check
fails. Then applies load for the given duration: a rate-limited HTTP
download (if configured), per-core CPU hashing, memory pressure, and
a disk write loop. SIGINT/SIGTERM stops all load generators and
removes scratch files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, err := strconv.ParseFloat(args[0], 64)
			if err != nil || hours <= 0 {
				return fmt.Errorf("invalid duration %q: want hours as a positive number", args[0])
			}
			duration := time.Duration(hours * float64(time.Hour))

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			if !skipChecks {
				suite := bench.NewSuite(cfg.Bench, log)
				results, err := suite.Run(cmd.Context())
				if err != nil {
					return err
				}
				rep := report.New(results)
				fmt.Print(rep.Render(term.IsTerminal(int(os.Stdout.Fd()))))

				if !results.AllOK() {
					return fmt.Errorf("health checks failed, refusing to start burn-in")
				}
			}

			log.WithField("duration", duration).Info("starting burn-in")
			runner := burnin.New(cfg.Burnin, log)
			if err := runner.Run(cmd.Context(), duration); err != nil {
				return err
			}
			log.Info("burn-in complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "start load without the health-check gate")
	return cmd
}
