//go:build !windows

package ipc

import (
	"errors"
	"net"
	"time"
)

func ListenPipe() (net.Listener, error) {
	return nil, errors.New("ipc: unsupported platform")
}

func DialPipe(timeout time.Duration) (net.Conn, error) {
	return nil, errors.New("ipc: unsupported platform")
}
