package bench

import (
	"context"
	"crypto/sha256"
	"time"
)

// cpuBufSize is the zero-filled buffer hashed per round, matching the
// fixed block the shell version fed to sha256sum.
const cpuBufSize = 64 << 20 // 64 MiB

// CPUResult holds hashing throughput over a fixed zero-filled buffer.
type CPUResult struct {
	MBps   float64
	Rounds int
}

// HashThroughput repeatedly SHA-256 hashes a zero-filled buffer for roughly
// the given duration and reports the sustained rate. At least one round
// always runs so a result is produced even with a tiny duration.
func HashThroughput(ctx context.Context, d time.Duration) *CPUResult {
	buf := make([]byte, cpuBufSize)
	res := &CPUResult{}

	start := time.Now()
	deadline := start.Add(d)
	for {
		sha256.Sum256(buf)
		res.Rounds++
		if time.Now().After(deadline) || ctx.Err() != nil {
			break
		}
	}
	elapsed := time.Since(start)

	totalMB := float64(res.Rounds) * float64(cpuBufSize) / (1 << 20)
	res.MBps = totalMB / elapsed.Seconds()
	return res
}
