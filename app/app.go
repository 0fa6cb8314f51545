package app

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/searchktools/lean-server/config"
	"github.com/searchktools/lean-server/core"
)

// App ties configuration to a server instance and owns the signal
// handling around its lifecycle.
type App struct {
	cfg *config.Config
	srv *core.Server
}

// New creates an application instance.
func New(cfg *config.Config) *App {
	srv := core.NewServer(core.Options{
		Port:             cfg.Port,
		KeepAliveTimeout: cfg.KeepAliveTimeout,
		Workers:          cfg.Workers,
	})

	return &App{
		cfg: cfg,
		srv: srv,
	}
}

// Server returns the underlying server for URL map registration.
func (a *App) Server() *core.Server {
	return a.srv
}

// Run initializes the server, installs the shutdown signal handler and
// drives the acceptor loop until shutdown is requested.
func (a *App) Run() {
	if err := a.srv.Init(); err != nil {
		log.Fatalf("Server init failed: %v", err)
	}

	go a.awaitSignal()

	log.Printf("lean-server listening on port %d [%s]", a.cfg.Port, a.cfg.Env)

	if err := a.srv.MainLoop(); err != nil {
		log.Printf("Main loop: %v", err)
	}
	a.srv.Shutdown()
}

// awaitSignal turns SIGINT/SIGTERM into the atomic shutdown token the
// acceptor polls every loop iteration.
func (a *App) awaitSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Signal received: %v. Shutting down...", sig)
	a.srv.RequestShutdown()
}
