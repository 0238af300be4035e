// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"net"
	"strings"
	"sync"
	"time"
)

// Client is a typed wrapper over one chat connection. Requests are sent with
// the typed methods; everything the server pushes arrives on Incoming.
type Client struct {
	conn     FrameConn
	incoming chan Message

	mu     sync.Mutex
	closed bool
}

// Dial connects to a chat server over TCP and starts the read loop.
func Dial(addr string) (*Client, error) {
	return DialTimeout(addr, 10*time.Second)
}

func DialTimeout(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return NewClient(newTCPFrameConn(conn, DefaultServerConfig().MaxFrameSize, 0)), nil
}

// NewClient wraps an established framed connection. Useful for WebSocket
// transports and tests.
func NewClient(conn FrameConn) *Client {
	c := &Client{
		conn:     conn,
		incoming: make(chan Message, 64),
	}

	safeGoroutine("ClientReadLoop", c.readLoop)

	return c
}

func (c *Client) readLoop() {
	defer close(c.incoming)
	for {
		m, err := readMessage(c.conn)
		if err != nil {
			return
		}
		c.incoming <- m
	}
}

// Incoming delivers every message the server pushes, in arrival order. The
// channel is closed when the connection drops or Close is called.
func (c *Client) Incoming() <-chan Message {
	return c.incoming
}

func (c *Client) send(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return writeMessage(c.conn, m)
}

func (c *Client) CreateRoom(name string, maxUsers int) error {
	return c.send(CreateRoom{RoomName: name, MaxUsers: maxUsers})
}

func (c *Client) JoinRoom(roomID, username string) error {
	return c.send(JoinRoom{RoomID: roomID, Username: username})
}

func (c *Client) Chat(content string) error {
	return c.send(Chat{Content: content})
}

func (c *Client) RequestRoomInfo() error {
	return c.send(GetRoomInfo{})
}

func (c *Client) Leave() error {
	return c.send(Leave{})
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// InputKind classifies one line of user input inside a room.
type InputKind int

const (
	InputChat InputKind = iota
	InputLeave
	InputCount
	InputHelp
	InputEmpty
)

// ClassifyInput maps a raw input line to the action it requests. "/leave" and
// the bare word "quit" both leave the room; "/count" asks for room info;
// anything else non-empty is chat.
func ClassifyInput(line string) InputKind {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return InputEmpty
	case trimmed == "/leave", strings.EqualFold(trimmed, "quit"):
		return InputLeave
	case trimmed == "/count":
		return InputCount
	case trimmed == "/help":
		return InputHelp
	default:
		return InputChat
	}
}
