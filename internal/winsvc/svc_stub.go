//go:build !windows

package winsvc

import "errors"

var errUnsupported = errors.New("winsvc: unsupported platform")

func IsWindowsService() bool { return false }

func Run(start func() error, stop func()) error { return errUnsupported }

func Install(exePath, configPath string) error { return errUnsupported }

func Uninstall() error { return errUnsupported }

func Start() error { return errUnsupported }

func Stop() error { return errUnsupported }

func Installed() bool { return false }

func Running() bool { return false }
