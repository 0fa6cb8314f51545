package core

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/searchktools/lean-server/core/http"
)

// raiseFDLimit lifts the open-files soft limit to the hard limit, or to
// 8x the current soft limit when the hard limit is unbounded, and
// returns the resulting limit. The slab is sized to this value so every
// fd the process may legally receive has a slot.
func raiseFDLimit() (uint64, error) {
	var r unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &r); err != nil {
		return 0, fmt.Errorf("getrlimit: %w", err)
	}

	if r.Max == unix.RLIM_INFINITY {
		r.Cur *= 8
	} else if r.Cur < r.Max {
		r.Cur = r.Max
	}

	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &r); err != nil {
		return 0, fmt.Errorf("setrlimit: %w", err)
	}
	return r.Cur, nil
}

// newSlab allocates the per-fd connection table. Each slot gets its
// response buffer and server back-reference exactly once; after a
// close(fd) the slot stays valid for the fd's next reuse.
func newSlab(srv *Server, size int) []Conn {
	conns := make([]Conn, size)
	for i := range conns {
		conns[i].fd = i
		conns[i].srv = srv
		conns[i].Response = http.NewResponseBuffer()
		conns[i].Request.QueryParams = http.EmptyQueryParams
	}
	return conns
}
