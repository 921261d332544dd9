package linuxinput

import (
	"errors"
	"os"

	"gestured/internal/core/gesture"

	"golang.org/x/sys/unix"
)

type Logger = gesture.Logger

const uinputPath = "/dev/uinput"

func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES)
}

// IsPermissionError reports whether err stems from missing privileges on an
// input or uinput node.
func IsPermissionError(err error) bool { return isPermissionError(err) }

func isDeviceClosedError(err error) bool {
	return errors.Is(err, os.ErrClosed) || errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENODEV)
}

func isWouldBlockError(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

func isBusyError(err error) bool {
	return errors.Is(err, unix.EBUSY)
}

// checkUinputAccess fails early, before any device is grabbed, when the
// virtual device could never be created.
func checkUinputAccess() error {
	if err := unix.Access(uinputPath, unix.W_OK); err != nil {
		return &os.PathError{Op: "access", Path: uinputPath, Err: err}
	}
	return nil
}
