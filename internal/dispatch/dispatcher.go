// Package dispatch serves HTTP over a bounded number of concurrent
// connections.
//
// An accept loop pushes connections into a bounded queue. An http.Server
// takes them from the queue through a listener capped at MaxWorkers
// concurrent connections, so a connection is only handed to the server when
// a slot is free. When every slot is busy and the queue is full the acceptor
// stops accepting, leaving further clients in the kernel backlog.
//
// Shutdown sequence:
//  1. Set the shutdown flag and close the listener
//  2. Close every queued connection the server has not picked up
//  3. Close idle keep-alive connections and stop keep-alive
//  4. Wait up to ShutdownTimeout for in-flight exchanges
//  5. Cancel request contexts and force-close whatever is still open
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"

	"vortex/internal/logger"
	"vortex/internal/metrics"
)

// ErrServerClosed is returned by Serve after Stop.
var ErrServerClosed = errors.New("dispatch: server closed")

const maxHeaderBytes = 1 << 20

// Config controls the listener, pool and timeouts.
type Config struct {
	Host string
	Port int

	// MaxWorkers is the number of connections served concurrently.
	// Default: 100.
	MaxWorkers int

	// QueueSize is how many accepted connections may wait for a free slot.
	// Default: MaxWorkers.
	QueueSize int

	// IdleTimeout closes keep-alive connections that send nothing.
	IdleTimeout time.Duration

	// HeaderTimeout bounds reading a request line and headers.
	HeaderTimeout time.Duration

	// ReadTimeout and WriteTimeout bound a whole exchange, body included.
	// Zero means no limit, so large transfers are never cut.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ShutdownTimeout is how long Stop waits before force-closing.
	// Default: 10s.
	ShutdownTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 100
	}
	if c.QueueSize == 0 {
		c.QueueSize = c.MaxWorkers
	}
	if c.QueueSize < 0 {
		c.QueueSize = 0
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Dispatcher owns the listener, the connection queue and the http.Server.
//
// All methods are safe for concurrent use.
type Dispatcher struct {
	config  Config
	handler http.Handler
	metrics metrics.Metrics

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server

	queue   chan net.Conn
	started atomic.Bool

	shuttingDown atomic.Bool
	shutdownOnce sync.Once
	shutdown     chan struct{}

	drainOnce sync.Once
	drainErr  error

	// shutdownCtx is the parent of every request context. It is cancelled
	// only when connections are force-closed.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConns maps each connection the server owns to its last state.
	activeConns sync.Map
	connCount   atomic.Int32
}

// New creates a dispatcher. m may be nil.
func New(config Config, handler http.Handler, m metrics.Metrics) *Dispatcher {
	config.applyDefaults()
	if m == nil {
		m = metrics.NewNoop()
	}
	shutdownCtx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		config:         config,
		handler:        handler,
		metrics:        m,
		queue:          make(chan net.Conn, config.QueueSize),
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancel,
	}
}

// Serve listens on Host:Port and serves until ctx is cancelled or Stop is
// called. Cancelling ctx performs the graceful shutdown before returning.
func (d *Dispatcher) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(d.config.Host, strconv.Itoa(d.config.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return d.ServeListener(ctx, l)
}

// ServeListener serves connections accepted from l. It takes ownership of
// l and closes it on shutdown.
func (d *Dispatcher) ServeListener(ctx context.Context, l net.Listener) error {
	if !d.started.CompareAndSwap(false, true) {
		_ = l.Close()
		return errors.New("dispatch: already serving")
	}

	d.mu.Lock()
	if d.shuttingDown.Load() {
		d.mu.Unlock()
		_ = l.Close()
		return ErrServerClosed
	}
	d.listener = l
	d.srv = d.newServer()
	srv := d.srv
	d.mu.Unlock()

	ql := &queueListener{d: d, addr: l.Addr(), closed: make(chan struct{})}
	go func() {
		err := srv.Serve(netutil.LimitListener(ql, d.config.MaxWorkers))
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			logger.Error("HTTP server stopped: %v", err)
			d.metrics.RecordUnexpectedError("dispatch")
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received: %v", ctx.Err())
			d.initiateShutdown()
		case <-d.shutdown:
		}
	}()

	logger.Info("Listening on %s (%d workers, queue %d)",
		l.Addr(), d.config.MaxWorkers, d.config.QueueSize)

	err := d.acceptLoop(l)
	d.initiateShutdown()
	close(d.queue)
	for nc := range d.queue {
		d.closeQueued(nc)
	}
	d.metrics.SetQueuedConnections(0)

	switch {
	case err != nil:
		_ = d.waitForDrain(context.Background())
		return err
	case ctx.Err() != nil:
		return d.waitForDrain(context.Background())
	default:
		return ErrServerClosed
	}
}

func (d *Dispatcher) newServer() *http.Server {
	return &http.Server{
		Handler:           d.instrument(d.handler),
		ReadHeaderTimeout: d.config.HeaderTimeout,
		ReadTimeout:       d.config.ReadTimeout,
		WriteTimeout:      d.config.WriteTimeout,
		IdleTimeout:       d.config.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return d.shutdownCtx },
		ConnState:         d.trackConn,
		// net/http reports malformed requests and TLS noise here; none of
		// it is a server fault.
		ErrorLog: slog.NewLogLogger(logger.With("component", "http").Handler(), slog.LevelDebug),
	}
}

func (d *Dispatcher) acceptLoop(l net.Listener) error {
	var backoff time.Duration
	for {
		nc, err := l.Accept()
		if err != nil {
			if d.shuttingDown.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				logger.Warn("Accept error: %v; retrying in %v", err, backoff)
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		d.metrics.RecordConnectionAccepted()

		select {
		case d.queue <- nc:
			d.metrics.SetQueuedConnections(len(d.queue))
		case <-d.shutdown:
			d.closeQueued(nc)
			return nil
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

func (d *Dispatcher) trackConn(c net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		d.activeConns.Store(c, state)
		d.metrics.SetActiveConnections(d.connCount.Add(1))
		logger.Debug("Serving connection from %s", c.RemoteAddr())
	case http.StateActive, http.StateIdle:
		d.activeConns.Store(c, state)
	case http.StateHijacked, http.StateClosed:
		if _, ok := d.activeConns.LoadAndDelete(c); ok {
			d.metrics.SetActiveConnections(d.connCount.Add(-1))
			d.metrics.RecordConnectionClosed()
		}
	}
}

func (d *Dispatcher) closeQueued(nc net.Conn) {
	logger.Debug("Closing queued connection from %s", nc.RemoteAddr())
	_ = nc.Close()
	d.metrics.RecordConnectionClosed()
}

// drainQueue closes connections still waiting for a slot.
func (d *Dispatcher) drainQueue() {
	for {
		select {
		case nc, ok := <-d.queue:
			if !ok {
				return
			}
			d.closeQueued(nc)
		default:
			d.metrics.SetQueuedConnections(0)
			return
		}
	}
}

// initiateShutdown stops accepting work. Safe to call multiple times.
func (d *Dispatcher) initiateShutdown() {
	d.shutdownOnce.Do(func() {
		logger.Debug("Dispatcher shutdown initiated")
		d.shuttingDown.Store(true)
		close(d.shutdown)

		d.mu.Lock()
		l, srv := d.listener, d.srv
		d.mu.Unlock()
		if l != nil {
			if err := l.Close(); err != nil {
				logger.Debug("Error closing listener: %v", err)
			}
		}
		if srv != nil {
			srv.SetKeepAlivesEnabled(false)
		}

		d.drainQueue()
	})
}

// waitForDrain blocks until every connection has finished, ShutdownTimeout
// elapses or ctx is done, force-closing connections in the latter two cases.
// Later calls return the first call's result.
func (d *Dispatcher) waitForDrain(ctx context.Context) error {
	d.mu.Lock()
	srv := d.srv
	d.mu.Unlock()
	if srv == nil {
		return nil
	}
	d.drainOnce.Do(func() {
		d.drainErr = d.drain(ctx, srv)
	})
	return d.drainErr
}

func (d *Dispatcher) drain(ctx context.Context, srv *http.Server) error {
	if n := d.connCount.Load(); n > 0 {
		logger.Info("Graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
			n, d.config.ShutdownTimeout)
	}

	graceCtx, cancel := context.WithTimeout(ctx, d.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(graceCtx); err == nil {
		logger.Info("Graceful shutdown complete")
		return nil
	}

	n := d.forceCloseConnections(srv)
	logger.Warn("Shutdown timeout exceeded: force-closed %d connection(s)", n)
	return fmt.Errorf("shutdown timeout: %d connection(s) force-closed", n)
}

func (d *Dispatcher) forceCloseConnections(srv *http.Server) int {
	d.cancelRequests()
	d.drainQueue()

	closed := 0
	d.activeConns.Range(func(key, _ any) bool {
		closed++
		d.metrics.RecordConnectionForceClosed()
		logger.Debug("Force-closing connection to %s", key.(net.Conn).RemoteAddr())
		return true
	})
	if err := srv.Close(); err != nil {
		logger.Debug("Error closing server: %v", err)
	}
	return closed
}

// Stop shuts the dispatcher down and waits for in-flight exchanges.
//
// The wait is bounded by ShutdownTimeout and by ctx, whichever ends first.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.initiateShutdown()
	return d.waitForDrain(ctx)
}

// Addr returns the listening address, or "" before Serve.
func (d *Dispatcher) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// ActiveConnections returns the number of connections owned by the server.
func (d *Dispatcher) ActiveConnections() int32 {
	return d.connCount.Load()
}

// QueuedConnections returns the number of accepted connections waiting
// for a free slot.
func (d *Dispatcher) QueuedConnections() int {
	return len(d.queue)
}

// queueListener hands the server connections from the dispatcher's queue.
type queueListener struct {
	d         *Dispatcher
	addr      net.Addr
	closed    chan struct{}
	closeOnce sync.Once
}

func (q *queueListener) Accept() (net.Conn, error) {
	for {
		select {
		case nc, ok := <-q.d.queue:
			if !ok {
				return nil, net.ErrClosed
			}
			q.d.metrics.SetQueuedConnections(len(q.d.queue))
			if q.d.shuttingDown.Load() {
				q.d.closeQueued(nc)
				continue
			}
			return nc, nil
		case <-q.closed:
			return nil, net.ErrClosed
		}
	}
}

func (q *queueListener) Close() error {
	q.closeOnce.Do(func() { close(q.closed) })
	return nil
}

func (q *queueListener) Addr() net.Addr {
	return q.addr
}
