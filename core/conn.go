package core

import (
	"github.com/searchktools/lean-server/core/coro"
	"github.com/searchktools/lean-server/core/http"
)

// Conn is one connection slot in the slab. Its index in the slab is its
// file descriptor, so lookup is direct indexing and the OS fd allocator
// doubles as the free list. All access happens on the single worker the
// fd was dispatched to.
type Conn struct {
	fd   int
	srv  *Server
	coro *coro.Coro

	// Request holds the parsed view of the in-flight request; its
	// QueryParams field is bound to the shared empty sentinel whenever
	// the URL carries no query string.
	Request http.Request

	// Response is pre-allocated once per slot and reset, never freed,
	// between requests on the same connection.
	Response http.Response

	// alive: the reactor tracks this fd and the OS fd is open.
	alive bool
	// shouldResumeCoro: the last coroutine step did not finish.
	shouldResumeCoro bool
	// writeEvents: current poller interest is write readiness.
	writeEvents bool
	// isKeepAlive: the in-progress or completed request keeps the
	// connection open.
	isKeepAlive bool

	// timeToDie is the worker tick at which the death queue reaps this
	// fd absent further activity.
	timeToDie uint
}

// reset prepares the slot for a new request. It preserves the fd, the
// server back-reference, the current coroutine and the response-buffer
// identity; query params rebind to the shared sentinel and every other
// field returns to its zero value.
func (c *Conn) reset() {
	fd := c.fd
	srv := c.srv
	cr := c.coro
	c.Response.Reset()
	resp := c.Response

	*c = Conn{}

	c.fd = fd
	c.srv = srv
	c.coro = cr
	c.Response = resp
	c.Request.QueryParams = http.EmptyQueryParams
}

// freeCoro releases the slot's coroutine unconditionally, suspended or
// finished.
func (c *Conn) freeCoro() {
	if c.coro == nil {
		return
	}
	c.coro.Free()
	c.coro = nil
	c.shouldResumeCoro = false
}
