// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// wsFrameConn adapts a WebSocket connection to FrameConn: one WebSocket text
// message per protocol frame, no newline framing needed.
type wsFrameConn struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

func newWSFrameConn(conn *websocket.Conn) *wsFrameConn {
	return &wsFrameConn{conn: conn}
}

func (c *wsFrameConn) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsFrameConn) WriteFrame(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsFrameConn) Close() error {
	return c.conn.Close()
}

func (c *wsFrameConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// WebSocketHandler returns an http.Handler that upgrades requests and runs
// the same session protocol as the TCP listener. Mount it on any mux:
//
//	http.Handle("/chat", server.WebSocketHandler())
func (s *Server) WebSocketHandler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if err := s.pool.Acquire(ip); err != nil {
			s.logger.log(LogTypeServer, LogLevelWarn, "websocket rejected for %s: %v", ip, err)
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}
		defer s.pool.Release(ip)

		if s.limiter != nil && !s.limiter.AllowIP(ip) {
			s.logger.log(LogTypeRateLimit, LogLevelInfo, "websocket rate limited for %s", ip)
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.log(LogTypeServer, LogLevelWarn, "websocket upgrade failed for %s: %v", ip, err)
			return
		}

		s.ServeFrameConn(newWSFrameConn(conn))
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.config.AllowedOrigins) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	for _, allowed := range s.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
