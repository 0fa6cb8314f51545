//go:build linux

// Package dirwatch delivers directory change notifications through a
// single inotify descriptor, sized to sit in the acceptor's root epoll
// set next to the listening socket.
package dirwatch

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Callback runs when an entry under a watched directory changes. Name
// is the affected entry relative to the watched directory.
type Callback func(name string)

type watchEntry struct {
	path string
	cb   Callback
}

// Watcher owns one inotify descriptor and its registered directories.
// ProcessEvents must be called from the thread driving the fd (the
// acceptor); callbacks run on that thread.
type Watcher struct {
	fd      int
	watches map[int]watchEntry
	buf     [4096]byte
}

// New creates a non-blocking inotify watcher.
func New() (*Watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}
	return &Watcher{
		fd:      fd,
		watches: make(map[int]watchEntry),
	}, nil
}

// FD returns the inotify descriptor for epoll enrollment.
func (w *Watcher) FD() int {
	return w.fd
}

// Watch registers a directory. Writes, creations, deletions and renames
// under it invoke cb.
func (w *Watcher) Watch(path string, cb Callback) error {
	const mask = unix.IN_CLOSE_WRITE | unix.IN_CREATE | unix.IN_DELETE |
		unix.IN_MOVED_FROM | unix.IN_MOVED_TO
	wd, err := unix.InotifyAddWatch(w.fd, path, mask)
	if err != nil {
		return fmt.Errorf("inotify add watch %s: %w", path, err)
	}
	w.watches[wd] = watchEntry{path: path, cb: cb}
	return nil
}

// ProcessEvents drains the inotify descriptor and dispatches callbacks.
// Called by the acceptor when the fd turns readable.
func (w *Watcher) ProcessEvents() {
	for {
		n, err := unix.Read(w.fd, w.buf[:])
		if err != nil || n <= 0 {
			return
		}

		offset := 0
		for offset+unix.SizeofInotifyEvent <= n {
			ev := (*unix.InotifyEvent)(unsafe.Pointer(&w.buf[offset]))
			nameLen := int(ev.Len)

			entry, ok := w.watches[int(ev.Wd)]
			if ok && entry.cb != nil {
				name := ""
				if nameLen > 0 {
					raw := w.buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
					for i, b := range raw {
						if b == 0 {
							raw = raw[:i]
							break
						}
					}
					name = string(raw)
				}
				entry.cb(name)
			}

			offset += unix.SizeofInotifyEvent + nameLen
		}
	}
}

// Close releases the inotify descriptor.
func (w *Watcher) Close() error {
	return unix.Close(w.fd)
}
