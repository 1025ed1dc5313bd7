//go:build linux || darwin

package loop

import (
	"golang.org/x/sys/unix"
)

// wakePipe is a self-pipe used to wake the loop from any other goroutine
// (external Submit, worker-pool completions, watcher accelerator events):
// a pump goroutine blocks in poll() on the read end and forwards each
// wake-up to the loop goroutine. Grounded on the teacher's own
// wake-pipe mechanism, minus the epoll/kqueue dual-path machinery this
// module has no use for (see DESIGN.md).
type wakePipe struct {
	readFD  int
	writeFD int
}

func newWakePipe() (*wakePipe, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &wakePipe{readFD: fds[0], writeFD: fds[1]}, nil
}

// Wake writes a single byte; EAGAIN (pipe already has a pending wake byte)
// is not an error, it just means the reader hasn't drained it yet.
func (w *wakePipe) Wake() error {
	var b [1]byte
	_, err := unix.Write(w.writeFD, b[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// Drain empties the pipe so future blocking reads don't return stale
// wake-ups immediately.
func (w *wakePipe) Drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.readFD, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (w *wakePipe) Close() {
	unix.Close(w.readFD)
	unix.Close(w.writeFD)
}

// blockForWake blocks the calling goroutine until at least one byte is
// available on the pipe, then drains it. Used by the background pump
// goroutine that forwards wake-ups onto the loop's wakeCh.
func (l *Loop) blockForWake() {
	var buf [64]byte
	fdset := []unix.PollFd{{Fd: int32(l.wake.readFD), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fdset, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return
		}
		break
	}
	for {
		n, err := unix.Read(l.wake.readFD, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}
