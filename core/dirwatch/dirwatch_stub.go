//go:build !linux

package dirwatch

// Callback runs when an entry under a watched directory changes.
type Callback func(name string)

// Watcher is inert on platforms without inotify; FD reports -1 so the
// acceptor skips epoll enrollment.
type Watcher struct{}

// New returns an inert watcher.
func New() (*Watcher, error) {
	return &Watcher{}, nil
}

// FD returns -1: nothing to enroll.
func (w *Watcher) FD() int {
	return -1
}

// Watch is a no-op.
func (w *Watcher) Watch(path string, cb Callback) error {
	return nil
}

// ProcessEvents is a no-op.
func (w *Watcher) ProcessEvents() {}

// Close is a no-op.
func (w *Watcher) Close() error {
	return nil
}
