//go:build linux

package core

import "golang.org/x/sys/unix"

// acceptConn accepts one pending connection with the child socket
// already non-blocking.
func acceptConn(listenFD int) (int, error) {
	fd, _, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK)
	return fd, err
}
