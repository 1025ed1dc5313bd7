//go:build linux

package watcher

import (
	"bytes"
	"encoding/binary"
	"sync"

	"golang.org/x/sys/unix"
)

const inotifyMask = unix.IN_MODIFY | unix.IN_CREATE | unix.IN_DELETE | unix.IN_DELETE_SELF | unix.IN_MOVE_SELF | unix.IN_ATTRIB

// InotifyAccelerator is the Linux-native alternative to
// FsnotifyAccelerator: a raw inotify file descriptor read in a
// dedicated goroutine, forcing an out-of-cycle re-poll on any hit. Like
// FsnotifyAccelerator it never substitutes for the polling comparison —
// it only shortens the wait.
type InotifyAccelerator struct {
	fd       int
	registry *Registry

	mu      sync.Mutex
	wdByPath map[string]int
	pathByWd map[int]string
	closed   bool
}

func NewInotifyAccelerator(registry *Registry) (*InotifyAccelerator, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, err
	}
	a := &InotifyAccelerator{
		fd:       fd,
		registry: registry,
		wdByPath: make(map[string]int),
		pathByWd: make(map[int]string),
	}
	go a.run()
	return a, nil
}

func (a *InotifyAccelerator) run() {
	buf := make([]byte, 64*(unix.SizeofInotifyEvent+unix.PathMax+1))
	for {
		n, err := unix.Read(a.fd, buf)
		if err == unix.EAGAIN {
			// the fd is non-blocking: wait for it to become readable (with
			// a timeout, so a Close is noticed by the next read) and retry.
			fds := []unix.PollFd{{Fd: int32(a.fd), Events: unix.POLLIN}}
			if _, perr := unix.Poll(fds, 100); perr != nil && perr != unix.EINTR {
				return
			}
			continue
		}
		if err != nil || n <= 0 {
			return
		}
		a.dispatch(buf[:n])
	}
}

func (a *InotifyAccelerator) dispatch(raw []byte) {
	var offset int
	for offset+unix.SizeofInotifyEvent <= len(raw) {
		var ev unix.InotifyEvent
		reader := bytes.NewReader(raw[offset : offset+unix.SizeofInotifyEvent])
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			return
		}
		offset += unix.SizeofInotifyEvent + int(ev.Len)

		a.mu.Lock()
		path, ok := a.pathByWd[int(ev.Wd)]
		a.mu.Unlock()
		if ok {
			a.registry.PollOnePath(path)
		}
	}
}

func (a *InotifyAccelerator) Watch(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	if _, ok := a.wdByPath[path]; ok {
		return nil
	}
	wd, err := unix.InotifyAddWatch(a.fd, path, inotifyMask)
	if err != nil {
		// parent directory not yet existing, or other transient issue:
		// acceleration is best-effort, polling remains correct.
		return nil
	}
	a.wdByPath[path] = wd
	a.pathByWd[wd] = path
	return nil
}

func (a *InotifyAccelerator) Unwatch(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	wd, ok := a.wdByPath[path]
	if !ok {
		return
	}
	delete(a.wdByPath, path)
	delete(a.pathByWd, wd)
	_, _ = unix.InotifyRmWatch(a.fd, uint32(wd))
}

func (a *InotifyAccelerator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return unix.Close(a.fd)
}
