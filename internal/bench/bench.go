// Package bench runs local hardware health checks: network latency,
// disk throughput, and CPU hashing speed, each compared against
// configured thresholds.
package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pvefleet/pvefleet/internal/config"
)

// CheckResult is one pass/fail line in the health report.
type CheckResult struct {
	Name   string
	Passed bool
	Detail string
}

// Results accumulates all check outcomes. AllOK gates the burn-in phase:
// it must be true before sustained load is applied.
type Results struct {
	Net  []CheckResult
	Disk []CheckResult
	CPU  []CheckResult
}

// AllOK reports whether every check passed.
func (r *Results) AllOK() bool {
	for _, group := range [][]CheckResult{r.Net, r.Disk, r.CPU} {
		for _, c := range group {
			if !c.Passed {
				return false
			}
		}
	}
	return true
}

// All returns every check in report order.
func (r *Results) All() []CheckResult {
	out := make([]CheckResult, 0, len(r.Net)+len(r.Disk)+len(r.CPU))
	out = append(out, r.Net...)
	out = append(out, r.Disk...)
	out = append(out, r.CPU...)
	return out
}

// Suite runs the configured health checks in a fixed order.
type Suite struct {
	cfg config.BenchConfig
	log *logrus.Logger
}

// NewSuite creates a Suite.
func NewSuite(cfg config.BenchConfig, log *logrus.Logger) *Suite {
	return &Suite{cfg: cfg, log: log}
}

// Run executes network, disk, and CPU checks sequentially. A failing check
// is recorded and the remaining checks still run.
func (s *Suite) Run(ctx context.Context) (*Results, error) {
	results := &Results{}

	for _, target := range s.cfg.Ping.Targets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results.Net = append(results.Net, s.netCheck(ctx, target))
	}

	for _, path := range s.cfg.Disk.Paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results.Disk = append(results.Disk, s.diskCheck(ctx, path))
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	results.CPU = append(results.CPU, s.cpuCheck(ctx))

	return results, nil
}

// netCheck pings one target and compares the mean RTT to the threshold.
func (s *Suite) netCheck(ctx context.Context, target config.PingTarget) CheckResult {
	name := fmt.Sprintf("net %s -> %s", target.NIC, target.Addr)
	if target.NIC == "" {
		name = "net -> " + target.Addr
	}

	count := s.cfg.Ping.Count
	if count <= 0 {
		count = 20
	}

	s.log.WithFields(logrus.Fields{"target": target.Addr, "nic": target.NIC}).Debug("ping check")

	res, err := Ping(ctx, target.Addr, target.NIC, count, time.Second)
	if err != nil {
		return CheckResult{Name: name, Passed: false, Detail: fmt.Sprintf("ping failed: %v", err)}
	}

	threshold := s.cfg.Ping.MaxAvgLatency.Duration
	detail := fmt.Sprintf("avg %.3fms (max allowed %.3fms), %d/%d lost",
		float64(res.AvgRTT)/float64(time.Millisecond),
		float64(threshold)/float64(time.Millisecond),
		res.Sent-res.Received, res.Sent)

	if res.Received == 0 {
		return CheckResult{Name: name, Passed: false, Detail: "no replies: " + detail}
	}
	// A mean above the millisecond threshold fails the check and, through
	// AllOK, blocks the burn-in phase.
	passed := res.AvgRTT <= threshold
	return CheckResult{Name: name, Passed: passed, Detail: detail}
}

// diskCheck measures direct-I/O throughput on one path.
func (s *Suite) diskCheck(ctx context.Context, path string) CheckResult {
	name := "disk " + path

	sizeMB := s.cfg.Disk.FileSizeMB
	if sizeMB <= 0 {
		sizeMB = 256
	}

	s.log.WithField("path", path).Debug("disk check")

	res, err := DiskThroughput(ctx, path, sizeMB)
	if err != nil {
		return CheckResult{Name: name, Passed: false, Detail: fmt.Sprintf("disk test failed: %v", err)}
	}

	mode := "direct"
	if !res.DirectIO {
		mode = "buffered"
	}
	detail := fmt.Sprintf("write %.1f MB/s (min %.1f), read %.1f MB/s (min %.1f), io latency avg %.2fms, %s",
		res.WriteMBps, s.cfg.Disk.MinWriteMBps,
		res.ReadMBps, s.cfg.Disk.MinReadMBps,
		res.AvgIOLatencyMs, mode)

	passed := res.WriteMBps >= s.cfg.Disk.MinWriteMBps && res.ReadMBps >= s.cfg.Disk.MinReadMBps
	return CheckResult{Name: name, Passed: passed, Detail: detail}
}

// cpuCheck measures hashing throughput over a zero-filled buffer.
func (s *Suite) cpuCheck(ctx context.Context) CheckResult {
	dur := s.cfg.CPU.Duration.Duration
	if dur <= 0 {
		dur = 5 * time.Second
	}

	s.log.WithField("duration", dur).Debug("cpu check")

	res := HashThroughput(ctx, dur)
	detail := fmt.Sprintf("sha256 %.1f MB/s (min %.1f), %d rounds",
		res.MBps, s.cfg.CPU.MinHashMBps, res.Rounds)

	passed := res.MBps >= s.cfg.CPU.MinHashMBps
	return CheckResult{Name: "cpu sha256", Passed: passed, Detail: detail}
}
