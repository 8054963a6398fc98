package process

import (
	"context"
	"strings"

	gopsnet "github.com/shirou/gopsutil/v3/net"
	gops "github.com/shirou/gopsutil/v3/process"

	"netsentry/internal/core"
)

const logTag = "Process"

// Table implements Query against the live process table.
type Table struct {
	log *core.Logger
}

// NewTable creates a process table query.
func NewTable(log *core.Logger) *Table {
	return &Table{log: log}
}

// ImageRunning reports whether any process with the given image name exists.
func (t *Table) ImageRunning(ctx context.Context, image string) bool {
	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		t.log.Warnf(logTag, "Process enumeration failed: %v", err)
		return false
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Exited mid-scan or access denied; skip.
			continue
		}
		if strings.EqualFold(name, image) {
			return true
		}
	}
	return false
}

// PIDsOf returns the PIDs of all processes with the given image name.
func (t *Table) PIDsOf(ctx context.Context, image string) []int32 {
	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		t.log.Warnf(logTag, "Process enumeration failed: %v", err)
		return nil
	}
	var pids []int32
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.EqualFold(name, image) {
			pids = append(pids, p.Pid)
		}
	}
	return pids
}

// HasEstablishedTCP reports whether the PID owns at least one ESTABLISHED
// TCP connection.
func (t *Table) HasEstablishedTCP(ctx context.Context, pid int32) bool {
	conns, err := gopsnet.ConnectionsPidWithContext(ctx, "tcp", pid)
	if err != nil {
		t.log.Debugf(logTag, "Connection query for pid %d failed: %v", pid, err)
		return false
	}
	for _, c := range conns {
		if c.Status == "ESTABLISHED" {
			return true
		}
	}
	return false
}
