//go:build darwin || freebsd || netbsd || openbsd

package poller

import (
	"golang.org/x/sys/unix"
)

// KqueuePoller is the BSD/macOS implementation. Edge-triggered read
// interest maps to EV_CLEAR; the read/write interest flip swaps the
// active filter.
type KqueuePoller struct {
	kq     int
	events []unix.Kevent_t
}

// NewPoller creates a kqueue instance with room for maxEvents ready
// descriptors per Wait.
func NewPoller(maxEvents int) (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}

	return &KqueuePoller{
		kq:     kq,
		events: make([]unix.Kevent_t, maxEvents),
	}, nil
}

func (p *KqueuePoller) change(fd int, filter int16, flags uint16) error {
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

// Add watches fd for level-triggered read readiness.
func (p *KqueuePoller) Add(fd int) error {
	return p.change(fd, unix.EVFILT_READ, unix.EV_ADD)
}

// AddConn watches a connection fd, edge-triggered.
func (p *KqueuePoller) AddConn(fd int) error {
	return p.change(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR)
}

// Modify flips the fd's interest between read and write readiness.
func (p *KqueuePoller) Modify(fd int, write bool) error {
	if write {
		if err := p.change(fd, unix.EVFILT_WRITE, unix.EV_ADD); err != nil {
			return err
		}
		err := p.change(fd, unix.EVFILT_READ, unix.EV_DELETE)
		if err == unix.ENOENT {
			err = nil
		}
		return err
	}

	if err := p.change(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR); err != nil {
		return err
	}
	err := p.change(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	if err == unix.ENOENT {
		err = nil
	}
	return err
}

// Remove stops watching fd on both filters.
func (p *KqueuePoller) Remove(fd int) error {
	errRead := p.change(fd, unix.EVFILT_READ, unix.EV_DELETE)
	errWrite := p.change(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	if errRead != nil && errRead != unix.ENOENT {
		return errRead
	}
	if errWrite != nil && errWrite != unix.ENOENT {
		return errWrite
	}
	return nil
}

// Wait blocks for readiness events. A timeout returns (nil, nil).
func (p *KqueuePoller) Wait(timeoutMs int) ([]Event, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}

	n, err := unix.Kevent(p.kq, nil, p.events, ts)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	evs := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		evs = append(evs, Event{
			FD:     int(p.events[i].Ident),
			Hangup: p.events[i].Flags&unix.EV_EOF != 0,
		})
	}
	return evs, nil
}

// FD returns the kqueue descriptor.
func (p *KqueuePoller) FD() int {
	return p.kq
}

// Close closes the kqueue descriptor.
func (p *KqueuePoller) Close() error {
	return unix.Close(p.kq)
}
