//go:build !linux

package core

import "golang.org/x/sys/unix"

// acceptConn accepts one pending connection and marks the child socket
// non-blocking (no accept4 outside Linux).
func acceptConn(listenFD int) (int, error) {
	fd, _, err := unix.Accept(listenFD)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}
