//go:build windows

package winsvc

import (
	"sync"

	"golang.org/x/sys/windows/svc"
)

// IsWindowsService reports whether the process was started by the SCM.
func IsWindowsService() bool {
	ok, err := svc.IsWindowsService()
	return err == nil && ok
}

// Run hands the process over to the SCM. start must block until stop is
// called; its return value becomes the service exit status.
func Run(start func() error, stop func()) error {
	return svc.Run(Name, &handler{start: start, stop: stop})
}

type handler struct {
	start func() error
	stop  func()
	once  sync.Once
}

func (h *handler) Execute(_ []string, reqs <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	status <- svc.Status{State: svc.StartPending}

	done := make(chan error, 1)
	go func() { done <- h.start() }()

	status <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}

	for {
		select {
		case req := <-reqs:
			switch req.Cmd {
			case svc.Interrogate:
				status <- req.CurrentStatus
			case svc.Stop, svc.Shutdown:
				status <- svc.Status{State: svc.StopPending}
				h.once.Do(h.stop)
				<-done
				return false, 0
			}
		case err := <-done:
			// The daemon exited without an SCM stop request.
			if err != nil {
				return true, 1
			}
			return false, 0
		}
	}
}
