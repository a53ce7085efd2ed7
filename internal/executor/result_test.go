package executor

import (
	"errors"
	"testing"
)

func TestResultsFailedCount(t *testing.T) {
	rs := Results{
		{Host: "a", ExitCode: 0},
		{Host: "b", ExitCode: 3},
		{Host: "c", Err: errors.New("connect: refused")},
		{Host: "d", ExitCode: 0},
	}

	if got := rs.FailedCount(); got != 2 {
		t.Errorf("FailedCount = %d, want 2", got)
	}
	if rs.AllOK() {
		t.Error("AllOK should be false")
	}
}

func TestResultsAllOK(t *testing.T) {
	rs := Results{
		{Host: "a", ExitCode: 0},
		{Host: "b", ExitCode: 0},
	}
	if !rs.AllOK() {
		t.Error("AllOK should be true when every host succeeded")
	}
	if got := rs.FailedCount(); got != 0 {
		t.Errorf("FailedCount = %d, want 0", got)
	}
}
