package termchat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWSTestServer(t *testing.T, options ...Option) (*Server, *httptest.Server) {
	t.Helper()

	base := []Option{
		WithLogger(&NullLogger{}),
		WithRateLimit(RateLimiterConfig{Enabled: false}),
	}
	server, err := NewServer(append(base, options...)...)
	require.NoError(t, err)

	ts := httptest.NewServer(server.WebSocketHandler())
	t.Cleanup(ts.Close)
	return server, ts
}

func dialWS(t *testing.T, ts *httptest.Server, header http.Header) (*Client, error) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, err
	}

	client := NewClient(newWSFrameConn(conn))
	t.Cleanup(func() { client.Close() })
	return client, nil
}

func TestWebSocketSessionFlow(t *testing.T) {
	server, ts := startWSTestServer(t)

	alice, err := dialWS(t, ts, nil)
	require.NoError(t, err)
	requireNext(t, alice, Connected{})

	require.NoError(t, alice.CreateRoom("general", 2))
	created, ok := nextFrom(t, alice).(RoomCreated)
	require.True(t, ok)

	require.NoError(t, alice.JoinRoom(created.RoomID, "alice"))
	requireNext(t, alice, JoinedRoom{RoomID: created.RoomID, RoomName: "general"})

	require.NoError(t, alice.Chat("over websocket"))
	requireNext(t, alice, UserMessage{Username: "alice", Content: "over websocket"})

	assert.Equal(t, 1, server.Registry().RoomCount())
}

func TestWebSocketSharesRoomsWithTCP(t *testing.T) {
	server, ts := startWSTestServer(t)

	wsClient, err := dialWS(t, ts, nil)
	require.NoError(t, err)
	requireNext(t, wsClient, Connected{})

	require.NoError(t, wsClient.CreateRoom("bridge", 2))
	created, ok := nextFrom(t, wsClient).(RoomCreated)
	require.True(t, ok)
	require.NoError(t, wsClient.JoinRoom(created.RoomID, "web"))
	requireNext(t, wsClient, JoinedRoom{RoomID: created.RoomID, RoomName: "bridge"})

	// A session fed straight through ServeFrameConn lands in the same
	// registry as the WebSocket one.
	conn := newChanFrameConn()
	go server.ServeFrameConn(conn)

	h := &sessionHarness{t: t, conn: conn}
	h.expect(Connected{})
	h.sendMsg(JoinRoom{RoomID: created.RoomID, Username: "term"})
	h.expect(JoinedRoom{RoomID: created.RoomID, RoomName: "bridge"})

	requireNext(t, wsClient, UserJoined{Username: "term"})

	h.sendMsg(Chat{Content: "hello web"})
	requireNext(t, wsClient, UserMessage{Username: "term", Content: "hello web"})

	conn.Close()
}

func TestWebSocketOriginCheck(t *testing.T) {
	_, ts := startWSTestServer(t, WithAllowedOrigins([]string{"http://allowed.example"}))

	badHeader := http.Header{}
	badHeader.Set("Origin", "http://evil.example")
	_, err := dialWS(t, ts, badHeader)
	assert.Error(t, err)

	goodHeader := http.Header{}
	goodHeader.Set("Origin", "http://allowed.example")
	client, err := dialWS(t, ts, goodHeader)
	require.NoError(t, err)
	requireNext(t, client, Connected{})
}
