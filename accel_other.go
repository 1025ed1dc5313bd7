//go:build !linux

package filesystem

import "github.com/hiblaphp/filesystem/internal/watcher"

func newPlatformAccelerator(reg *watcher.Registry) (interface {
	Watch(string) error
	Unwatch(string)
	Close() error
}, error) {
	return watcher.NewFsnotifyAccelerator(reg)
}
