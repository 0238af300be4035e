package termchat

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPFrameConnReadFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	fc := newTCPFrameConn(server, 1024, 0)

	go func() {
		client.Write([]byte("{\"Chat\":{\"content\":\"hi\"}}\n"))
		client.Write([]byte("\"Leave\"\r\n"))
	}()

	frame, err := fc.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"Chat":{"content":"hi"}}`, string(frame))

	// CRLF terminators are stripped too.
	frame, err = fc.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, `"Leave"`, string(frame))
}

func TestTCPFrameConnWriteFrameAppendsNewline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	fc := newTCPFrameConn(server, 1024, 0)

	go func() {
		fc.WriteFrame([]byte(`"Connected"`))
	}()

	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "\"Connected\"\n", string(buf[:n]))
}

func TestTCPFrameConnFrameTooLarge(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	// bufio enforces a 16 byte minimum buffer.
	fc := newTCPFrameConn(server, 16, 0)

	go func() {
		client.Write([]byte(strings.Repeat("x", 64) + "\n"))
	}()

	_, err := fc.ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadWriteMessageRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientFC := newTCPFrameConn(clientConn, 1024, 0)
	serverFC := newTCPFrameConn(serverConn, 1024, 0)

	go func() {
		writeMessage(clientFC, CreateRoom{RoomName: "general", MaxUsers: 2})
	}()

	m, err := readMessage(serverFC)
	require.NoError(t, err)
	assert.Equal(t, CreateRoom{RoomName: "general", MaxUsers: 2}, m)
}
