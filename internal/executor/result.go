package executor

import "time"

// HostResult holds the result of executing a command on a single host.
type HostResult struct {
	Host     string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	Err      error // connection/timeout errors
}

// Failed reports whether the host action did not fully succeed, either
// because the connection failed or because the remote command exited non-zero.
func (r *HostResult) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// Results is an ordered collection of per-host outcomes. Order matches the
// input host list.
type Results []*HostResult

// FailedCount returns the number of hosts that failed. Callers use it to
// derive an aggregate exit status: the run as a whole only succeeds when
// every host succeeded.
func (rs Results) FailedCount() int {
	n := 0
	for _, r := range rs {
		if r.Failed() {
			n++
		}
	}
	return n
}

// AllOK reports whether every host action succeeded.
func (rs Results) AllOK() bool {
	return rs.FailedCount() == 0
}
