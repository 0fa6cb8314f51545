package core

import (
	"log"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/searchktools/lean-server/core/coro"
	"github.com/searchktools/lean-server/core/poller"
)

// worker is one reactor: a private epoll set, a death queue and a
// coroutine switcher. Every fd dispatched to a worker is driven only by
// that worker, so connection state needs no locking.
type worker struct {
	srv        *Server
	poller     poller.Poller
	deathQueue *queue.Queue
	tick       uint
	switcher   coro.Switcher
}

func newWorker(srv *Server) (*worker, error) {
	p, err := poller.NewPoller(srv.maxFDPerWorker)
	if err != nil {
		return nil, err
	}
	return &worker{
		srv:        srv,
		poller:     p,
		deathQueue: queue.New(),
	}, nil
}

// run is the reactor loop. It blocks indefinitely while the death queue
// is empty; otherwise it wakes every second to advance the tick and
// reap expired connections. Closing the worker's poller makes the next
// wait fail with EBADF/EINVAL, which is the shutdown signal.
func (w *worker) run() {
	for {
		timeout := -1
		if w.deathQueue.Length() > 0 {
			timeout = 1000
		}

		evs, err := w.poller.Wait(timeout)
		if err != nil {
			if err == unix.EBADF || err == unix.EINVAL {
				return
			}
			continue
		}

		if len(evs) == 0 {
			w.tick++
			w.reapExpired()
			continue
		}

		for _, ev := range evs {
			w.dispatch(ev)
		}
	}
}

func (w *worker) dispatch(ev poller.Event) {
	conn := &w.srv.conns[ev.FD]
	conn.fd = ev.FD

	if ev.Hangup {
		w.handleHangup(conn)
		return
	}

	w.cleanupCoro(conn)
	w.spawnCoroIfNeeded(conn)
	w.resumeCoroIfNeeded(conn)

	// A keep-alive connection, or one whose coroutine still has work,
	// earns the full timeout; anything else is reaped on the next tick.
	if conn.isKeepAlive || conn.shouldResumeCoro {
		conn.timeToDie = w.tick + w.srv.keepAliveTimeout
	} else {
		conn.timeToDie = w.tick
	}

	if !conn.alive {
		w.deathQueue.Add(ev.FD)
		conn.alive = true
	}
}

// handleHangup closes the fd right away. The death-queue entry stays
// behind as a tombstone; the reaper skips it.
func (w *worker) handleHangup(conn *Conn) {
	conn.alive = false
	unix.Close(conn.fd)
	w.srv.monitor.RecordHangup()
}

// cleanupCoro frees the slot's coroutine once its last resume reported
// completion. A still-resumable coroutine is left alone.
func (w *worker) cleanupCoro(conn *Conn) {
	if conn.coro == nil || conn.shouldResumeCoro {
		return
	}
	conn.coro.Free()
	conn.coro = nil
}

func (w *worker) spawnCoroIfNeeded(conn *Conn) {
	if conn.coro != nil {
		return
	}
	conn.coro = coro.New(&w.switcher, processRequestCoro, conn)
	conn.shouldResumeCoro = true
	conn.writeEvents = false
}

func (w *worker) resumeCoroIfNeeded(conn *Conn) {
	if !conn.shouldResumeCoro || conn.coro == nil {
		return
	}

	conn.shouldResumeCoro = conn.coro.Resume()
	if conn.shouldResumeCoro == conn.writeEvents {
		return
	}

	// The coroutine's I/O interest flipped: reprogram the poller to the
	// opposite direction.
	if err := w.poller.Modify(conn.fd, !conn.writeEvents); err != nil {
		log.Printf("poller modify fd %d: %v", conn.fd, err)
	}
	conn.writeEvents = !conn.writeEvents
}

// reapExpired pops expired entries off the death queue. The queue is
// ordered by enrollment time, which implies non-decreasing timeToDie
// since the timeout is constant, so the scan stops at the first entry
// still in the future.
func (w *worker) reapExpired() {
	for w.deathQueue.Length() > 0 {
		fd := w.deathQueue.Peek().(int)
		conn := &w.srv.conns[fd]

		if conn.timeToDie > w.tick {
			break
		}
		w.deathQueue.Remove()

		if !conn.alive {
			// Closed on hangup; the tombstone may still hold a
			// suspended coroutine.
			conn.freeCoro()
			continue
		}

		conn.freeCoro()
		conn.alive = false
		unix.Close(conn.fd)
		w.srv.monitor.RecordReap()
	}
}
