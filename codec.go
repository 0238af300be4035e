// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"bufio"
	"bytes"
	"net"
	"sync"
	"time"
)

// FrameConn carries one protocol message per frame. The TCP implementation
// frames with newlines; the WebSocket implementation maps frames to
// WebSocket messages.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
	RemoteAddr() net.Addr
}

type tcpFrameConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration
	mu           sync.Mutex // serializes writes
}

// newTCPFrameConn wraps a stream connection with newline framing. Frames
// longer than maxFrameSize fail with ErrFrameTooLarge.
func newTCPFrameConn(conn net.Conn, maxFrameSize int, writeTimeout time.Duration) *tcpFrameConn {
	return &tcpFrameConn{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, maxFrameSize),
		writeTimeout: writeTimeout,
	}
}

func (c *tcpFrameConn) ReadFrame() ([]byte, error) {
	line, err := c.reader.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		return nil, ErrFrameTooLarge
	}
	if err != nil {
		return nil, err
	}

	frame := make([]byte, len(line))
	copy(frame, line)
	return bytes.TrimRight(frame, "\r\n"), nil
}

func (c *tcpFrameConn) WriteFrame(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}

	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	_, err := c.conn.Write(buf)
	return err
}

func (c *tcpFrameConn) Close() error {
	return c.conn.Close()
}

func (c *tcpFrameConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// writeMessage encodes and writes a single protocol message to a FrameConn.
func writeMessage(conn FrameConn, m Message) error {
	data, err := EncodeMessage(m)
	if err != nil {
		return err
	}
	return conn.WriteFrame(data)
}

// readMessage reads and decodes a single protocol message from a FrameConn.
// Transport errors are returned as-is; decode failures wrap
// ErrMalformedMessage.
func readMessage(conn FrameConn) (Message, error) {
	frame, err := conn.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeMessage(frame)
}
