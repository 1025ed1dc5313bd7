package loop

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's id by parsing the prefix of
// runtime.Stack output. This is the standard (if informally blessed) way
// to do this in Go without cgo or assembly; it is only used to detect
// reentrant Run calls and to fast-path loop-thread checks, never for
// correctness-critical synchronization.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	// "goroutine 123 [running]:"
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
