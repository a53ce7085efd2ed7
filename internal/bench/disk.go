package bench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unsafe"

	"github.com/montanaflynn/stats"
	"golang.org/x/sys/unix"
)

const (
	diskBlockSize = 1 << 20 // 1 MiB per I/O, matching the dd block size
	diskAlign     = 4096    // O_DIRECT buffer/offset alignment
)

// DiskResult holds sequential throughput and per-I/O latency measurements
// for a single test path.
type DiskResult struct {
	Path           string
	WriteMBps      float64
	ReadMBps       float64
	AvgIOLatencyMs float64
	DirectIO       bool // false when the filesystem rejected O_DIRECT
}

// DiskThroughput writes and reads back a sizeMB test file under dir using
// direct I/O, bypassing the page cache the way `dd oflag=direct` does.
// Filesystems without O_DIRECT support (tmpfs) fall back to synced
// buffered I/O, flagged in the result.
func DiskThroughput(ctx context.Context, dir string, sizeMB int) (*DiskResult, error) {
	if fi, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("test directory: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("test path %s is not a directory", dir)
	}

	path := filepath.Join(dir, fmt.Sprintf(".pvefleet-bench-%d", os.Getpid()))
	defer os.Remove(path)

	res := &DiskResult{Path: dir, DirectIO: true}
	buf := alignedBuffer(diskBlockSize, diskAlign)
	blocks := sizeMB // one 1 MiB block per MB

	var latencies []float64

	// Write phase.
	fd, err := openDirect(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, &res.DirectIO)
	if err != nil {
		return nil, fmt.Errorf("open for write: %w", err)
	}
	writeStart := time.Now()
	for i := 0; i < blocks; i++ {
		if err := ctx.Err(); err != nil {
			unix.Close(fd)
			return nil, err
		}
		ioStart := time.Now()
		if _, err := unix.Write(fd, buf); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("write block %d: %w", i, err)
		}
		latencies = append(latencies, float64(time.Since(ioStart))/float64(time.Millisecond))
	}
	if err := unix.Fsync(fd); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("fsync: %w", err)
	}
	writeDur := time.Since(writeStart)
	unix.Close(fd)

	// Read phase.
	fd, err = openDirect(path, unix.O_RDONLY, &res.DirectIO)
	if err != nil {
		return nil, fmt.Errorf("open for read: %w", err)
	}
	readStart := time.Now()
	for i := 0; i < blocks; i++ {
		if err := ctx.Err(); err != nil {
			unix.Close(fd)
			return nil, err
		}
		n, err := unix.Read(fd, buf)
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("read block %d: %w", i, err)
		}
		if n == 0 {
			break
		}
	}
	readDur := time.Since(readStart)
	unix.Close(fd)

	totalMB := float64(blocks)
	res.WriteMBps = totalMB / writeDur.Seconds()
	res.ReadMBps = totalMB / readDur.Seconds()

	if len(latencies) > 0 {
		mean, err := stats.Mean(latencies)
		if err != nil {
			return nil, fmt.Errorf("latency mean: %w", err)
		}
		res.AvgIOLatencyMs = mean
	}

	return res, nil
}

// openDirect opens path with O_DIRECT, clearing *direct and retrying
// without the flag when the filesystem refuses it.
func openDirect(path string, flags int, direct *bool) (int, error) {
	if *direct {
		fd, err := unix.Open(path, flags|unix.O_DIRECT, 0644)
		if err == nil {
			return fd, nil
		}
		if err != unix.EINVAL {
			return -1, err
		}
		*direct = false
	}
	return unix.Open(path, flags|unix.O_SYNC, 0644)
}

// alignedBuffer returns a size-byte slice whose base address is aligned to
// align bytes, as O_DIRECT requires.
func alignedBuffer(size, align int) []byte {
	raw := make([]byte, size+align)
	offset := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) % uintptr(align)); rem != 0 {
		offset = align - rem
	}
	return raw[offset : offset+size]
}
