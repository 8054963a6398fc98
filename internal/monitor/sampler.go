package monitor

import (
	"context"

	"netsentry/internal/process"
)

// ProcessSampler observes the VPN client through the live process table:
// frontend presence, tunnel core presence, and whether any tunnel core
// PID holds an ESTABLISHED TCP connection.
type ProcessSampler struct {
	procs       process.Query
	uiImage     string
	tunnelImage string
}

// NewProcessSampler creates the production sampler for the given images.
func NewProcessSampler(procs process.Query, uiImage, tunnelImage string) *ProcessSampler {
	return &ProcessSampler{
		procs:       procs,
		uiImage:     uiImage,
		tunnelImage: tunnelImage,
	}
}

// Sample implements Sampler.
func (s *ProcessSampler) Sample(ctx context.Context) (uiRunning, tunnelRunning, tunnelActive bool) {
	uiRunning = s.procs.ImageRunning(ctx, s.uiImage)

	pids := s.procs.PIDsOf(ctx, s.tunnelImage)
	tunnelRunning = len(pids) > 0
	for _, pid := range pids {
		if s.procs.HasEstablishedTCP(ctx, pid) {
			tunnelActive = true
			break
		}
	}
	return uiRunning, tunnelRunning, tunnelActive
}
