//go:build linux

package poller

import (
	"golang.org/x/sys/unix"
)

// Interest masks for connection descriptors. Read interest is
// edge-triggered; write interest is level-triggered so a pending write
// fires again until it drains.
const (
	connReadEvents  = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLERR | unix.EPOLLET
	connWriteEvents = unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLERR
)

// EpollPoller is the Linux epoll implementation.
type EpollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

// NewPoller creates an epoll instance with room for maxEvents ready
// descriptors per Wait.
func NewPoller(maxEvents int) (Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}

	return &EpollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Add watches fd for level-triggered read readiness.
func (p *EpollPoller) Add(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// AddConn watches a connection fd, edge-triggered, with hangup
// detection.
func (p *EpollPoller) AddConn(fd int) error {
	ev := unix.EpollEvent{
		Events: uint32(connReadEvents),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// Modify flips the fd's interest between read and write readiness.
func (p *EpollPoller) Modify(fd int, write bool) error {
	events := uint32(connReadEvents)
	if write {
		events = uint32(connWriteEvents)
	}
	ev := unix.EpollEvent{
		Events: events,
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

// Remove stops watching fd.
func (p *EpollPoller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for readiness events. A timeout returns (nil, nil); an
// interrupted wait surfaces unix.EINTR for the caller to retry.
func (p *EpollPoller) Wait(timeoutMs int) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	evs := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		evs = append(evs, Event{
			FD:     int(p.events[i].Fd),
			Hangup: p.events[i].Events&(unix.EPOLLRDHUP|unix.EPOLLHUP) != 0,
		})
	}
	return evs, nil
}

// FD returns the epoll descriptor.
func (p *EpollPoller) FD() int {
	return p.epfd
}

// Close closes the epoll descriptor.
func (p *EpollPoller) Close() error {
	return unix.Close(p.epfd)
}
