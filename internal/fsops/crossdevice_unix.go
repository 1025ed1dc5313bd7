//go:build linux || darwin

package fsops

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// isCrossDevice reports whether a rename failed because old and new span
// distinct filesystems (EXDEV), the case Rename falls back to copy+delete
// for.
func isCrossDevice(le *os.LinkError) bool {
	return errors.Is(le.Err, unix.EXDEV)
}
