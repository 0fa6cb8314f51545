package core

// Header names the request processor cares about.
const (
	HeaderConnection = "Connection"
	HeaderHost       = "Host"
)

const (
	// DefaultKeepAliveTimeout is the idle reaper budget in ticks
	// (seconds of reactor idleness).
	DefaultKeepAliveTimeout = 5

	// requestBufferSize is the read buffer handed to each in-flight
	// request; a head that doesn't fit is answered with 413.
	requestBufferSize = 8192

	// rootPollerEvents bounds the acceptor's epoll scratch array.
	rootPollerEvents = 128

	// shutdownPollMs bounds how long the acceptor can sit in epoll_wait
	// before it rechecks the shutdown token.
	shutdownPollMs = 1000
)
