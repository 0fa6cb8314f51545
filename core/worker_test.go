package core

import (
	"testing"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/searchktools/lean-server/core/coro"
	"github.com/searchktools/lean-server/core/poller"
)

type fakePoller struct {
	modifies []bool
}

func (f *fakePoller) Add(fd int) error     { return nil }
func (f *fakePoller) AddConn(fd int) error { return nil }
func (f *fakePoller) Modify(fd int, write bool) error {
	f.modifies = append(f.modifies, write)
	return nil
}
func (f *fakePoller) Remove(fd int) error                        { return nil }
func (f *fakePoller) Wait(timeoutMs int) ([]poller.Event, error) { return nil, nil }
func (f *fakePoller) FD() int                                    { return -1 }
func (f *fakePoller) Close() error                               { return nil }

func newTestWorker(srv *Server) (*worker, *fakePoller) {
	fp := &fakePoller{}
	return &worker{
		srv:        srv,
		poller:     fp,
		deathQueue: queue.New(),
	}, fp
}

func testPipe(t *testing.T) (int, int) {
	t.Helper()
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	return fds[0], fds[1]
}

// TestReapExpiredOrder tests that the reaper walks the queue in
// enrollment order and stops at the first entry still in the future.
func TestReapExpiredOrder(t *testing.T) {
	srv := newTestServer(64)
	w, _ := newTestWorker(srv)

	fd1, wr1 := testPipe(t)
	defer unix.Close(wr1)
	fd2, wr2 := testPipe(t)
	defer unix.Close(wr2)

	srv.conns[fd1].fd = fd1
	srv.conns[fd1].alive = true
	srv.conns[fd1].timeToDie = 1
	w.deathQueue.Add(fd1)

	srv.conns[fd2].fd = fd2
	srv.conns[fd2].alive = true
	srv.conns[fd2].timeToDie = 2
	w.deathQueue.Add(fd2)

	w.tick = 1
	w.reapExpired()

	if srv.conns[fd1].alive {
		t.Error("expired connection still alive")
	}
	if !srv.conns[fd2].alive {
		t.Error("future connection reaped early")
	}
	if w.deathQueue.Length() != 1 {
		t.Errorf("queue length: got %d, want 1", w.deathQueue.Length())
	}

	w.tick = 2
	w.reapExpired()

	if srv.conns[fd2].alive {
		t.Error("second connection survived its deadline")
	}
	if w.deathQueue.Length() != 0 {
		t.Errorf("queue length: got %d, want 0", w.deathQueue.Length())
	}
	if got := srv.monitor.Snapshot().ConnectionsReaped; got != 2 {
		t.Errorf("reap counter: got %d, want 2", got)
	}
}

// TestReapSkipsTombstone tests that an entry closed on hangup is
// skipped by the reaper and its suspended coroutine released without a
// double free.
func TestReapSkipsTombstone(t *testing.T) {
	srv := newTestServer(64)
	w, _ := newTestWorker(srv)

	fd, wr := testPipe(t)
	defer unix.Close(wr)

	conn := &srv.conns[fd]
	conn.fd = fd
	conn.alive = true
	conn.timeToDie = 1
	w.deathQueue.Add(fd)

	var switcher coro.Switcher
	conn.coro = coro.New(&switcher, func(c *coro.Coro) { c.Yield() }, conn)
	conn.shouldResumeCoro = conn.coro.Resume()

	w.dispatch(poller.Event{FD: fd, Hangup: true})
	if conn.alive {
		t.Fatal("hangup left connection alive")
	}
	if conn.coro == nil {
		t.Fatal("hangup freed the coroutine early")
	}

	w.tick = 1
	w.reapExpired()

	if w.deathQueue.Length() != 0 {
		t.Errorf("tombstone not removed: length %d", w.deathQueue.Length())
	}
	if conn.coro != nil {
		t.Error("tombstone coroutine not released")
	}
	if got := srv.monitor.Snapshot().ConnectionsReaped; got != 0 {
		t.Errorf("tombstone counted as reap: %d", got)
	}
	if got := srv.monitor.Snapshot().Hangups; got != 1 {
		t.Errorf("hangup counter: got %d, want 1", got)
	}
}

// TestCleanupCoroGate tests that cleanup frees only coroutines whose
// last resume reported completion.
func TestCleanupCoroGate(t *testing.T) {
	srv := newTestServer(16)
	w, _ := newTestWorker(srv)
	conn := &srv.conns[5]

	var switcher coro.Switcher
	conn.coro = coro.New(&switcher, func(c *coro.Coro) { c.Yield() }, conn)
	conn.shouldResumeCoro = conn.coro.Resume()

	w.cleanupCoro(conn)
	if conn.coro == nil {
		t.Fatal("resumable coroutine freed")
	}

	conn.shouldResumeCoro = conn.coro.Resume()
	w.cleanupCoro(conn)
	if conn.coro != nil {
		t.Fatal("finished coroutine not freed")
	}
}

// TestResumeFlipsInterest tests the write_events handshake: a yield
// flips the poller interest to write, completion flips it back to read.
func TestResumeFlipsInterest(t *testing.T) {
	srv := newTestServer(16)
	w, fp := newTestWorker(srv)
	conn := &srv.conns[5]

	var switcher coro.Switcher
	conn.coro = coro.New(&switcher, func(c *coro.Coro) { c.Yield() }, conn)
	conn.shouldResumeCoro = true
	conn.writeEvents = false

	w.resumeCoroIfNeeded(conn)
	if !conn.shouldResumeCoro || !conn.writeEvents {
		t.Fatalf("after yield: shouldResume=%v writeEvents=%v", conn.shouldResumeCoro, conn.writeEvents)
	}

	w.resumeCoroIfNeeded(conn)
	if conn.shouldResumeCoro || conn.writeEvents {
		t.Fatalf("after completion: shouldResume=%v writeEvents=%v", conn.shouldResumeCoro, conn.writeEvents)
	}

	want := []bool{true, false}
	if len(fp.modifies) != len(want) {
		t.Fatalf("modify calls: got %v, want %v", fp.modifies, want)
	}
	for i := range want {
		if fp.modifies[i] != want[i] {
			t.Errorf("modify %d: got write=%v, want write=%v", i, fp.modifies[i], want[i])
		}
	}
	conn.freeCoro()
}

// TestDispatchKeepAlive tests a full request over a socketpair: the
// connection is enrolled exactly once, stays alive and earns the full
// keep-alive budget.
func TestDispatchKeepAlive(t *testing.T) {
	srv := newTestServer(256)
	w, _ := newTestWorker(srv)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	server, client := fds[0], fds[1]
	defer unix.Close(client)
	if err := unix.SetNonblock(server, true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}

	// No data yet: the coroutine blocks on read and yields.
	w.tick = 7
	w.dispatch(poller.Event{FD: server})

	conn := &srv.conns[server]
	if !conn.alive {
		t.Fatal("connection not enrolled")
	}
	if !conn.shouldResumeCoro {
		t.Fatal("blocked coroutine reported finished")
	}
	if conn.timeToDie != 7+srv.keepAliveTimeout {
		t.Errorf("timeToDie: got %d, want %d", conn.timeToDie, 7+srv.keepAliveTimeout)
	}
	if w.deathQueue.Length() != 1 {
		t.Fatalf("queue length: got %d, want 1", w.deathQueue.Length())
	}

	// Second spurious event: no duplicate enrollment.
	w.dispatch(poller.Event{FD: server})
	if w.deathQueue.Length() != 1 {
		t.Fatalf("duplicate enrollment: length %d", w.deathQueue.Length())
	}

	// Deliver a complete keep-alive request; the resumed coroutine
	// parses, routes (no URL map: 404) and writes its response.
	req := []byte("GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
	if _, err := unix.Write(client, req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	w.dispatch(poller.Event{FD: server})
	if conn.shouldResumeCoro {
		t.Error("request coroutine still pending after response")
	}
	if !conn.isKeepAlive {
		t.Error("HTTP/1.1 request not detected as keep-alive")
	}
	if conn.timeToDie != 7+srv.keepAliveTimeout {
		t.Errorf("keep-alive timeToDie: got %d, want %d", conn.timeToDie, 7+srv.keepAliveTimeout)
	}

	resp := make([]byte, 4096)
	n, err := unix.Read(client, resp)
	if err != nil || n == 0 {
		t.Fatalf("read response: n=%d err=%v", n, err)
	}
	if string(resp[:17]) != "HTTP/1.1 404 Not " {
		t.Errorf("response: got %q", resp[:n])
	}

	conn.freeCoro()
	unix.Close(server)
}
