package core

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/searchktools/lean-server/core/dirwatch"
	"github.com/searchktools/lean-server/core/observability"
	"github.com/searchktools/lean-server/core/poller"
	"github.com/searchktools/lean-server/core/pools"
	"github.com/searchktools/lean-server/core/router"
)

// Options configure a Server.
type Options struct {
	Port int
	// KeepAliveTimeout is the idle budget in reaper ticks (seconds).
	// Zero means DefaultKeepAliveTimeout.
	KeepAliveTimeout int
	// Workers is the reactor count. Zero means one per online CPU.
	Workers int
}

// Server owns the connection slab, the worker reactors, the acceptor
// loop and the URL map. One instance per process.
type Server struct {
	port             int
	keepAliveTimeout uint
	nWorkers         int
	maxFDPerWorker   int

	// conns is the slab: per-fd connection state, indexed by raw fd.
	conns []Conn

	workers []*worker
	wg      sync.WaitGroup

	urlMap  []*router.URLMap
	urlTrie *router.Trie

	listenFD int
	// counter round-robins accepted fds across workers; touched only by
	// the acceptor.
	counter int

	bufPool *pools.BytePool
	monitor *observability.Monitor
	watch   *dirwatch.Watcher

	shutdown atomic.Bool
}

// NewServer creates an unstarted server.
func NewServer(opts Options) *Server {
	keepAlive := opts.KeepAliveTimeout
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAliveTimeout
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Server{
		port:             opts.Port,
		keepAliveTimeout: uint(keepAlive),
		nWorkers:         workers,
		listenFD:         -1,
		bufPool:          pools.NewBytePool(),
		monitor:          observability.NewMonitor(),
	}
}

// Monitor exposes the server's event counters.
func (s *Server) Monitor() *observability.Monitor {
	return s.monitor
}

// DirWatch exposes the directory watcher wired into the acceptor loop.
func (s *Server) DirWatch() *dirwatch.Watcher {
	return s.watch
}

// SetURLMap replaces the routing table. Every previously registered
// entry is torn down before any new entry is initialized. Prefix
// lengths are cached, handler Init results stored, and callbacks
// resolved here; the trie is read-only afterwards.
func (s *Server) SetURLMap(urlMap []*router.URLMap) {
	s.teardownURLMap()

	s.urlMap = urlMap
	s.urlTrie = router.NewTrie()

	for _, entry := range urlMap {
		entry.PrefixLen = len(entry.Prefix)
		s.urlTrie.Add(entry.Prefix, entry)

		h := entry.Handler
		if h == nil {
			entry.Flags = router.ParseAll
			continue
		}
		entry.Callback = h.Handle
		if h.Init == nil {
			entry.Flags = router.ParseAll
			continue
		}
		entry.Data = h.Init(entry.Args)
		entry.Flags = h.Flags
	}
}

func (s *Server) teardownURLMap() {
	if s.urlMap == nil {
		return
	}
	s.urlTrie = nil
	for _, entry := range s.urlMap {
		if h := entry.Handler; h != nil && h.Teardown != nil {
			h.Teardown(entry.Data)
		}
		entry.Data = nil
	}
	s.urlMap = nil
}

// Init brings the server up: slab, signal dispositions, listening
// socket, workers, directory watch. Errors here are deployment errors;
// callers are expected to abort on them.
func (s *Server) Init() error {
	maxFDs, err := raiseFDLimit()
	if err != nil {
		return err
	}
	s.conns = newSlab(s, int(maxFDs))
	s.maxFDPerWorker = int(maxFDs) / s.nWorkers

	signal.Ignore(syscall.SIGPIPE)
	os.Stdin.Close()

	if err := s.socketInit(); err != nil {
		return err
	}
	if err := s.startWorkers(); err != nil {
		return err
	}

	s.watch, err = dirwatch.New()
	if err != nil {
		return fmt.Errorf("dirwatch: %w", err)
	}

	log.Printf("Using %d workers, maximum %d sockets per worker.", s.nWorkers, s.maxFDPerWorker)
	return nil
}

func (s *Server) socketInit() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return fmt.Errorf("socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	linger := unix.Linger{Onoff: 1, Linger: 1}
	if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &linger); err != nil {
		unix.Close(fd)
		return fmt.Errorf("setsockopt SO_LINGER: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: s.port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("bind port %d: %w", s.port, err)
	}
	if err := unix.Listen(fd, s.nWorkers*s.maxFDPerWorker); err != nil {
		unix.Close(fd)
		return fmt.Errorf("listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("set nonblock: %w", err)
	}

	s.listenFD = fd
	return nil
}

func (s *Server) startWorkers() error {
	s.workers = make([]*worker, s.nWorkers)
	for i := range s.workers {
		w, err := newWorker(s)
		if err != nil {
			return fmt.Errorf("worker %d: %w", i, err)
		}
		s.workers[i] = w
	}

	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w *worker) {
			defer s.wg.Done()
			w.run()
		}(w)
	}
	return nil
}

// RequestShutdown flips the shutdown token; the acceptor notices on its
// next loop iteration. Safe to call from a signal handler goroutine.
func (s *Server) RequestShutdown() {
	s.shutdown.Store(true)
}

// MainLoop runs the acceptor: a root epoll set over the listening
// socket and the directory-watch descriptor. Returns when the shutdown
// token is set.
func (s *Server) MainLoop() error {
	root, err := poller.NewPoller(rootPollerEvents)
	if err != nil {
		return fmt.Errorf("root poller: %w", err)
	}
	defer root.Close()

	if err := root.Add(s.listenFD); err != nil {
		return fmt.Errorf("watch listen socket: %w", err)
	}
	if watchFD := s.watch.FD(); watchFD >= 0 {
		if err := root.Add(watchFD); err != nil {
			return fmt.Errorf("watch inotify fd: %w", err)
		}
	}

	for !s.shutdown.Load() {
		evs, err := root.Wait(shutdownPollMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("root poller wait: %w", err)
		}

		for _, ev := range evs {
			if ev.FD == s.listenFD {
				s.acceptPending()
			} else {
				s.watch.ProcessEvents()
			}
		}
	}
	return nil
}

// acceptPending drains the listen backlog. Accept errors other than
// EAGAIN are transient: logged, and the drain stops until the next
// readiness event.
func (s *Server) acceptPending() {
	for {
		fd, err := acceptConn(s.listenFD)
		if err != nil {
			if err != unix.EAGAIN {
				log.Printf("accept: %v", err)
			}
			return
		}
		s.pushConnFD(fd)
	}
}

// pushConnFD enrolls an accepted fd into the next worker's epoll set.
// EPOLL_CTL_ADD is the only cross-thread interaction with a worker; the
// kernel serializes it.
func (s *Server) pushConnFD(fd int) {
	w := s.workers[s.nextWorker()]
	if err := w.poller.AddConn(fd); err != nil {
		log.Printf("poller add fd %d: %v", fd, err)
		unix.Close(fd)
		return
	}
	s.monitor.RecordAccept()
}

func (s *Server) nextWorker() int {
	i := s.counter % len(s.workers)
	s.counter++
	return i
}

// Shutdown tears the server down in reverse of Init: close worker
// pollers (each loop exits on its next wait), join workers, shut the
// listening socket, tear down the URL map, release the watcher and the
// slab.
func (s *Server) Shutdown() {
	for _, w := range s.workers {
		w.poller.Close()
	}
	s.wg.Wait()
	s.workers = nil

	if s.listenFD >= 0 {
		unix.Shutdown(s.listenFD, unix.SHUT_RDWR)
		unix.Close(s.listenFD)
		s.listenFD = -1
	}

	s.teardownURLMap()

	if s.watch != nil {
		s.watch.Close()
		s.watch = nil
	}

	s.conns = nil
}
