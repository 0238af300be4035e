package termchat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, chatEcho bool) *Registry {
	t.Helper()
	return NewRegistry(NullLoggerConfig(), chatEcho)
}

func TestRegistryCreateValidation(t *testing.T) {
	tests := []struct {
		name        string
		roomName    string
		maxUsers    int
		expectedErr error
	}{
		{"empty name", "", 4, ErrRoomNameEmpty},
		{"capacity zero", "general", 0, ErrInvalidCapacity},
		{"capacity one", "general", 1, ErrInvalidCapacity},
		{"negative capacity", "general", -3, ErrInvalidCapacity},
	}

	reg := newTestRegistry(t, true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Create(tt.roomName, tt.maxUsers)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
	assert.Equal(t, 0, reg.RoomCount())
}

func TestRegistryCreateAssignsUniqueIDs(t *testing.T) {
	reg := newTestRegistry(t, true)

	// Room names are display labels, not keys: the same name may exist twice.
	id1, err := reg.Create("general", 2)
	require.NoError(t, err)
	id2, err := reg.Create("general", 2)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, reg.RoomCount())
}

func TestRegistryJoinValidation(t *testing.T) {
	reg := newTestRegistry(t, true)
	id, err := reg.Create("general", 2)
	require.NoError(t, err)

	out := make(chan Message, 8)

	_, err = reg.Join(id, "", out, nil)
	assert.ErrorIs(t, err, ErrUsernameEmpty)

	_, err = reg.Join("no-such-room", "alice", out, nil)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	snap, err := reg.Join(id, "alice", out, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, snap.Users)

	_, err = reg.Join(id, "alice", out, nil)
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegistryConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	const capacity = 4
	const contenders = 32

	reg := newTestRegistry(t, true)
	id, err := reg.Create("busy", capacity)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var successes, fulls sync.Map

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			out := make(chan Message, 64)
			username := string(rune('a' + n%26)) + string(rune('0'+n/26))
			_, err := reg.Join(id, username, out, nil)
			if err == nil {
				successes.Store(n, true)
			} else if assert.ErrorIs(t, err, ErrRoomFull) {
				fulls.Store(n, true)
			}
		}(i)
	}
	wg.Wait()

	count := func(m *sync.Map) int {
		n := 0
		m.Range(func(_, _ any) bool { n++; return true })
		return n
	}

	assert.Equal(t, capacity, count(&successes))
	assert.Equal(t, contenders-capacity, count(&fulls))

	snap, err := reg.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, capacity, snap.CurrentCount())
}

func TestRegistryLastLeaveDestroysRoom(t *testing.T) {
	reg := newTestRegistry(t, true)
	id, err := reg.Create("general", 2)
	require.NoError(t, err)

	out := make(chan Message, 8)
	_, err = reg.Join(id, "alice", out, nil)
	require.NoError(t, err)
	_, err = reg.Join(id, "bob", out, nil)
	require.NoError(t, err)

	reg.Leave(id, "alice")
	assert.Equal(t, 1, reg.RoomCount())

	reg.Leave(id, "bob")
	assert.Equal(t, 0, reg.RoomCount())

	// The destroyed id is gone for good.
	_, err = reg.Join(id, "carol", out, nil)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = reg.Snapshot(id)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistryLeaveUnknownIsNoOp(t *testing.T) {
	reg := newTestRegistry(t, true)
	id, err := reg.Create("general", 2)
	require.NoError(t, err)

	out := make(chan Message, 8)
	_, err = reg.Join(id, "alice", out, nil)
	require.NoError(t, err)

	reg.Leave("no-such-room", "alice")
	reg.Leave(id, "nobody")
	assert.Equal(t, 1, reg.RoomCount())
}

func TestRegistryBroadcastChatEchoPolicy(t *testing.T) {
	t.Run("echo enabled delivers to sender", func(t *testing.T) {
		reg := newTestRegistry(t, true)
		id, _ := reg.Create("general", 2)

		aliceOut := make(chan Message, 8)
		bobOut := make(chan Message, 8)
		reg.Join(id, "alice", aliceOut, nil)
		reg.Join(id, "bob", bobOut, nil)

		require.NoError(t, reg.BroadcastChat(id, "alice", "hi"))

		expected := UserMessage{Username: "alice", Content: "hi"}
		assert.Equal(t, expected, <-aliceOut)
		assert.Equal(t, expected, <-bobOut)
	})

	t.Run("echo disabled skips sender", func(t *testing.T) {
		reg := newTestRegistry(t, false)
		id, _ := reg.Create("general", 2)

		aliceOut := make(chan Message, 8)
		bobOut := make(chan Message, 8)
		reg.Join(id, "alice", aliceOut, nil)
		reg.Join(id, "bob", bobOut, nil)

		require.NoError(t, reg.BroadcastChat(id, "alice", "hi"))

		assert.Len(t, aliceOut, 0)
		assert.Equal(t, UserMessage{Username: "alice", Content: "hi"}, <-bobOut)
	})
}

func TestRegistryBroadcastToMissingRoom(t *testing.T) {
	reg := newTestRegistry(t, true)
	err := reg.BroadcastChat("no-such-room", "alice", "hi")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistryOverflowDropsMember(t *testing.T) {
	reg := newTestRegistry(t, true)
	id, _ := reg.Create("general", 2)

	dropped := make(chan struct{})
	slowOut := make(chan Message, 1)
	_, err := reg.Join(id, "slow", slowOut, func() { close(dropped) })
	require.NoError(t, err)

	fastOut := make(chan Message, 8)
	_, err = reg.Join(id, "fast", fastOut, nil)
	require.NoError(t, err)

	require.NoError(t, reg.BroadcastChat(id, "fast", "one"))
	require.NoError(t, reg.BroadcastChat(id, "fast", "two"))

	<-dropped
	assert.Equal(t, uint64(1), reg.DroppedMembers())
	assert.Equal(t, uint64(2), reg.MessagesRelayed())
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(newRoomFullError(2, 2)))
	assert.True(t, IsRecoverable(ErrUsernameTaken))
	assert.False(t, IsRecoverable(ErrMalformedMessage))
	assert.False(t, IsRecoverable(nil))
}
