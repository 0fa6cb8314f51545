/*
Package lean-server is a small, high-throughput HTTP server core built
around sharded event loops.

Each worker reactor owns a private epoll set and a dense per-fd state
table; accepted connections are round-robined across workers and every
request is driven as a cooperatively-scheduled coroutine whose
suspension points map to readiness events. Idle connections are reaped
by a per-worker ring-buffered death queue with O(1) enrollment.

# Quick Start

Basic usage example:

	package main

	import (
	    "github.com/searchktools/lean-server/app"
	    "github.com/searchktools/lean-server/config"
	    "github.com/searchktools/lean-server/core/http"
	    "github.com/searchktools/lean-server/core/router"
	)

	func main() {
	    cfg := config.New()
	    application := app.New(cfg)

	    application.Server().SetURLMap([]*router.URLMap{
	        {Prefix: "/", Handler: &router.Handler{
	            Handle: func(req *http.Request, resp *http.Response, state any) http.Status {
	                resp.WriteString("Hello, World!")
	                return http.StatusOK
	            },
	        }},
	    })

	    application.Run()
	}

# Modules

The framework is organized into several modules:

  - app: Application lifecycle management
  - config: Configuration loading
  - core: Connection slab, worker reactors, acceptor, lifecycle
  - core/coro: Cooperative per-request coroutines
  - core/http: Request parsing, response serialization, status and MIME tables
  - core/router: URL-prefix trie routing
  - core/poller: I/O multiplexing (epoll/kqueue)
  - core/pools: Request buffer pooling
  - core/dirwatch: Directory change notification
  - core/observability: Server event counters
*/
package leanserver
