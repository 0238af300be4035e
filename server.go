// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Option configures a Server at construction time.
type Option func(*Server) error

// WithAddr sets the TCP bind address (host:port).
func WithAddr(addr string) Option {
	return func(s *Server) error {
		if addr == "" {
			return ErrAddrEmpty
		}
		s.config.Addr = addr
		return nil
	}
}

// WithLogger replaces the logger implementation.
func WithLogger(logger Logger) Option {
	return func(s *Server) error {
		s.logger.Logger = logger
		return nil
	}
}

// WithLogLevel sets the level threshold for one log type.
func WithLogLevel(logType LogType, level LogLevel) Option {
	return func(s *Server) error {
		s.logger.Level[logType] = level
		return nil
	}
}

// WithChatEcho controls whether a sender receives its own chat lines back.
// Defaults to true.
func WithChatEcho(enabled bool) Option {
	return func(s *Server) error {
		s.config.ChatEcho = enabled
		return nil
	}
}

// WithMaxConnections caps the number of concurrently served connections.
func WithMaxConnections(max int) Option {
	return func(s *Server) error {
		if max <= 0 {
			return ErrMaxConnectionsLessThanOne
		}
		s.config.MaxConnections = max
		return nil
	}
}

// WithMaxConnectionsPerIP caps the connections served per source IP.
// Zero disables the per-IP cap.
func WithMaxConnectionsPerIP(max int) Option {
	return func(s *Server) error {
		s.config.MaxConnectionsPerIP = max
		return nil
	}
}

// WithMaxFrameSize sets the largest accepted wire frame in bytes.
func WithMaxFrameSize(size int) Option {
	return func(s *Server) error {
		if size <= 0 {
			return ErrFrameSizeLessThanOne
		}
		s.config.MaxFrameSize = size
		return nil
	}
}

// WithQueueSize sets the per-member outbound queue capacity. A member whose
// queue saturates is disconnected rather than allowed to stall the room.
func WithQueueSize(size int) Option {
	return func(s *Server) error {
		if size <= 0 {
			return ErrQueueSizeLessThanOne
		}
		s.config.QueueSize = size
		return nil
	}
}

// WithWriteTimeout bounds each outbound frame write. Zero disables the
// deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d < 0 {
			d = 0
		}
		s.config.WriteTimeout = d
		return nil
	}
}

// WithRateLimit replaces the inbound message rate limiting configuration.
func WithRateLimit(config RateLimiterConfig) Option {
	return func(s *Server) error {
		s.config.RateLimit = config
		return nil
	}
}

// WithAllowedOrigins restricts the Origin header accepted by the WebSocket
// endpoint. Empty means any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) error {
		s.config.AllowedOrigins = origins
		return nil
	}
}

// Server accepts TCP connections and runs one Session per connection
// against a shared room Registry.
type Server struct {
	config   *ServerConfig
	logger   *LoggerConfig
	registry *Registry
	sessions *SharedCollection[*Session]
	pool     *ConnectionPool
	limiter  *RateLimiterManager

	mu        sync.Mutex
	listener  net.Listener
	isRunning bool
	startTime time.Time

	totalConnections atomic.Uint64
}

func NewServer(options ...Option) (*Server, error) {
	s := &Server{
		config:   DefaultServerConfig(),
		logger:   DefaultLoggerConfig(),
		sessions: NewSharedCollection[*Session](),
	}

	for _, o := range options {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	s.registry = NewRegistry(s.logger, s.config.ChatEcho)
	s.pool = NewConnectionPool(s.config.MaxConnections, s.config.MaxConnectionsPerIP)
	if s.config.RateLimit.Enabled {
		s.limiter = NewRateLimiterManager(s.config.RateLimit)
	}

	return s, nil
}

// Registry exposes the room registry, e.g. for stats or tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Addr returns the listener address, useful when binding to port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens on the configured address and serves until Stop is called
// or the listener fails.
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext serves until the context is canceled, Stop is called, or
// the listener fails. Cancellation closes the listener and every live
// session, releasing all registry slots.
func (s *Server) StartWithContext(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.isRunning = true
	s.startTime = time.Now()
	s.mu.Unlock()

	s.logger.log(LogTypeServer, LogLevelInfo, "chat server listening on %s", listener.Addr())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		_ = s.Stop()
		return ctx.Err()
	})

	g.Go(func() error {
		return s.acceptLoop(listener)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// acceptLoop returns net.ErrClosed after a graceful Stop, so the errgroup
// always unwinds; StartWithContext reports that as a clean shutdown.
func (s *Server) acceptLoop(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.isRunning
			s.mu.Unlock()
			if !running {
				return net.ErrClosed
			}
			return err
		}

		safeGoroutine("ServeConn", func() {
			s.serveConn(conn)
		})
	}
}

func (s *Server) serveConn(conn net.Conn) {
	ip := remoteIP(conn.RemoteAddr())
	if err := s.pool.Acquire(ip); err != nil {
		s.logger.log(LogTypeServer, LogLevelWarn, "connection rejected for %s: %v", ip, err)
		_ = conn.Close()
		return
	}
	defer s.pool.Release(ip)

	if s.limiter != nil && !s.limiter.AllowIP(ip) {
		s.logger.log(LogTypeRateLimit, LogLevelInfo, "connection rate limited for %s", ip)
		_ = conn.Close()
		return
	}

	fc := newTCPFrameConn(conn, s.config.MaxFrameSize, s.config.WriteTimeout)
	s.ServeFrameConn(fc)
}

// ServeFrameConn runs a full session over an already-framed connection. It
// blocks until the session ends. The WebSocket endpoint and tests feed
// their transports through here.
func (s *Server) ServeFrameConn(fc FrameConn) {
	session := NewSession(fc, s.registry, s.logger, s.config.QueueSize)
	session.limiter = s.limiter
	session.onClose = func(sess *Session) {
		s.sessions.Remove(sess.id)
	}

	s.sessions.Add(session.id, session)
	s.totalConnections.Add(1)
	s.logger.log(LogTypeSession, LogLevelInfo, "%s connected from %s", session.id, fc.RemoteAddr())

	session.Run()
}

// Stop closes the listener and all live sessions. Every in-room session
// takes its normal leave path, so no room keeps a ghost member.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrServerNotRunning
	}
	s.isRunning = false
	listener := s.listener
	s.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	s.sessions.ForEach(func(id string, session *Session) {
		session.Close()
	})

	if s.limiter != nil {
		s.limiter.Stop()
	}

	s.logger.log(LogTypeServer, LogLevelInfo, "chat server stopped")
	return err
}

// Stats returns a point-in-time statistics snapshot.
func (s *Server) Stats() Stats {
	total, perIP := s.pool.Stats()

	s.mu.Lock()
	startTime := s.startTime
	s.mu.Unlock()

	var uptime time.Duration
	if !startTime.IsZero() {
		uptime = time.Since(startTime)
	}

	return Stats{
		ActiveSessions:   total,
		TotalConnections: s.totalConnections.Load(),
		ConnectionsPerIP: perIP,
		TotalRooms:       s.registry.RoomCount(),
		RoomStats:        s.registry.RoomStats(),
		MessagesRelayed:  s.registry.MessagesRelayed(),
		DroppedMembers:   s.registry.DroppedMembers(),
		Uptime:           uptime,
		Timestamp:        time.Now(),
	}
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
