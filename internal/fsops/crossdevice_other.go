//go:build !linux && !darwin

package fsops

import "os"

func isCrossDevice(le *os.LinkError) bool {
	return false
}
