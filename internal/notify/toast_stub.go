//go:build !windows

package notify

func pushToast(title, message string) error {
	return nil
}
