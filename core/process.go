package core

import (
	"bytes"

	"golang.org/x/sys/unix"

	"github.com/searchktools/lean-server/core/coro"
	"github.com/searchktools/lean-server/core/http"
	"github.com/searchktools/lean-server/core/router"
)

// processRequestCoro is the entry every per-request coroutine runs: the
// slot is reset, then the request is processed to completion. Returning
// ends the coroutine.
func processRequestCoro(c *coro.Coro) {
	conn := c.Data().(*Conn)
	conn.reset()
	conn.srv.processRequest(conn)
}

// processRequest reads, parses, routes and answers one request. Reads
// and writes that would block suspend the coroutine. While it stays
// suspended the worker keeps the fd on write interest (see
// resumeCoroIfNeeded), so a blocked read is also retried on write
// readiness.
func (s *Server) processRequest(conn *Conn) {
	buf := s.bufPool.Get(requestBufferSize)
	defer s.bufPool.Put(buf)

	offset := 0
	for {
		n, err := unix.Read(conn.fd, buf[offset:])
		if err == unix.EAGAIN || err == unix.EINTR {
			conn.coro.Yield()
			continue
		}
		if err != nil || n == 0 {
			conn.isKeepAlive = false
			return
		}

		offset += n
		if http.HeadComplete(buf[:offset]) {
			break
		}
		if offset == len(buf) {
			conn.isKeepAlive = false
			s.writeResponse(conn, http.StatusTooLarge)
			return
		}
	}
	head := buf[:offset]

	rawQuery, err := http.ParseRequestLine(head, &conn.Request)
	if err != nil {
		conn.isKeepAlive = false
		s.writeResponse(conn, http.StatusBadRequest)
		return
	}

	headers := head
	if i := bytes.IndexByte(headers, '\n'); i != -1 {
		headers = headers[i+1:]
	}
	conn.isKeepAlive = http.IsKeepAlive(conn.Request.Proto, http.HeaderValue(headers, HeaderConnection))

	var entry *router.URLMap
	if s.urlTrie != nil {
		entry = s.urlTrie.LookupPrefix(conn.Request.Path)
	}
	if entry == nil || entry.Callback == nil {
		s.writeResponse(conn, http.StatusNotFound)
		return
	}

	if entry.Flags&router.ParseQueryString != 0 {
		conn.Request.QueryParams = http.DecodeQueryParams(rawQuery)
	}

	status := entry.Callback(&conn.Request, &conn.Response, entry.Data)
	s.writeResponse(conn, status)
	s.monitor.RecordRequest()
}

// writeResponse serializes the response and pushes it out, yielding
// whenever the socket would block.
func (s *Server) writeResponse(conn *Conn, status http.Status) {
	out := http.Serialize(status, &conn.Response, conn.isKeepAlive)

	written := 0
	for written < len(out) {
		n, err := unix.Write(conn.fd, out[written:])
		if err == unix.EAGAIN || err == unix.EINTR {
			conn.coro.Yield()
			continue
		}
		if err != nil {
			conn.isKeepAlive = false
			return
		}
		written += n
	}
}
