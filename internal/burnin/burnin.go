// Package burnin applies sustained synthetic load to validate hardware
// stability over time: a throttled download, CPU hashing, memory
// pressure, and a disk write loop, all bounded by a single deadline.
package burnin

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/pvefleet/pvefleet/internal/config"
)

// Runner drives the burn-in load generators.
type Runner struct {
	cfg config.BurninConfig
	log *logrus.Logger
}

// New creates a Runner.
func New(cfg config.BurninConfig, log *logrus.Logger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// Run applies load for the given duration. All generators run under one
// errgroup whose context carries the deadline; cancelling ctx (SIGINT,
// SIGTERM) tears every generator down and removes scratch files. The
// deadline elapsing is the normal way a run ends and is not an error.
func (r *Runner) Run(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("burn-in duration must be positive, got %s", d)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if r.cfg.DownloadURL != "" {
		bytesPerSec := int64(0)
		if r.cfg.DownloadRate != "" {
			var err error
			bytesPerSec, err = ParseRate(r.cfg.DownloadRate)
			if err != nil {
				r.log.WithError(err).Warn("download rate not understood, running unthrottled")
			}
		}
		g.Go(func() error { return r.downloadLoad(ctx, bytesPerSec) })
	}

	workers := r.cfg.CPUWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	r.log.WithField("workers", workers).Info("starting cpu load")
	for i := 0; i < workers; i++ {
		g.Go(func() error { return cpuLoad(ctx) })
	}

	if r.cfg.MemoryPercent > 0 {
		g.Go(func() error { return r.memoryLoad(ctx) })
	}

	scratch := r.cfg.ScratchDir
	if scratch == "" {
		scratch = os.TempDir()
	}
	g.Go(func() error { return r.diskLoad(ctx, scratch) })

	err := g.Wait()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// downloadLoad fetches the configured URL in a loop, throttled to
// bytesPerSec (0 means unthrottled), discarding the body.
func (r *Runner) downloadLoad(ctx context.Context, bytesPerSec int64) error {
	buf := make([]byte, 32*1024)

	var limiter *rate.Limiter
	if bytesPerSec > 0 {
		// The burst must cover a full read: WaitN(n) fails outright when
		// n exceeds the burst, which low rates like 10 KiB/s would hit.
		burst := int(bytesPerSec)
		if burst < len(buf) {
			burst = len(buf)
		}
		limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
	}
	r.log.WithFields(logrus.Fields{"url": r.cfg.DownloadURL, "bytes_per_sec": bytesPerSec}).Info("starting download load")

	client := &http.Client{}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.DownloadURL, nil)
		if err != nil {
			return fmt.Errorf("build download request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Transient fetch errors keep the generator alive; the point
			// is sustained load, not transfer success.
			r.log.WithError(err).Warn("download failed, retrying")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for {
			n, err := resp.Body.Read(buf)
			if n > 0 && limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					resp.Body.Close()
					// WaitN reports early when the reservation cannot be
					// served before the context deadline; the deadline is
					// how a run normally ends, so hold until then.
					<-ctx.Done()
					return ctx.Err()
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				break
			}
		}
		resp.Body.Close()
	}
}

// cpuLoad hashes a small buffer until the context ends.
func cpuLoad(ctx context.Context) error {
	buf := make([]byte, 1<<20)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			sha256.Sum256(buf)
		}
	}
}

// memoryLoad allocates the configured fraction of total memory in 64 MiB
// slabs, touches every page, and keeps re-touching to hold the pages
// resident until the context ends.
func (r *Runner) memoryLoad(ctx context.Context) error {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return fmt.Errorf("sysinfo: %w", err)
	}
	total := uint64(info.Totalram) * uint64(info.Unit)
	target := uint64(float64(total) * r.cfg.MemoryPercent / 100)

	r.log.WithFields(logrus.Fields{"target_bytes": target, "percent": r.cfg.MemoryPercent}).Info("starting memory load")

	const slabSize = 64 << 20
	var slabs [][]byte
	for allocated := uint64(0); allocated < target; allocated += slabSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		slab := make([]byte, slabSize)
		for i := 0; i < len(slab); i += 4096 {
			slab[i] = byte(i)
		}
		slabs = append(slabs, slab)
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, slab := range slabs {
				for i := 0; i < len(slab); i += 4096 {
					slab[i]++
				}
			}
		}
	}
}

// diskLoad repeatedly writes, syncs, and removes a scratch file.
func (r *Runner) diskLoad(ctx context.Context, dir string) error {
	path := filepath.Join(dir, fmt.Sprintf(".pvefleet-burnin-%d", os.Getpid()))
	defer os.Remove(path)

	r.log.WithField("path", path).Info("starting disk load")

	buf := make([]byte, 1<<20)
	const fileBlocks = 64 // 64 MiB per pass

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("open scratch file: %w", err)
		}
		for i := 0; i < fileBlocks; i++ {
			if ctx.Err() != nil {
				break
			}
			if _, err := f.Write(buf); err != nil {
				f.Close()
				return fmt.Errorf("write scratch file: %w", err)
			}
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("sync scratch file: %w", err)
		}
		f.Close()

		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove scratch file: %w", err)
		}
	}
}
