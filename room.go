// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"sync"
	"time"
)

// Member is one occupant of a room: a username plus the bounded outbound
// queue its session drains. drop is invoked (outside the room lock) when the
// queue overflows, so a slow consumer is disconnected instead of stalling
// the room.
type Member struct {
	Username string
	out      chan<- Message
	drop     func()
}

// Room holds the membership of one chat room. Insertion order of members is
// preserved for listing. All access goes through the owning Registry, which
// always locks registry before room.
type Room struct {
	id        string
	name      string
	maxUsers  int
	createdAt time.Time

	mu      sync.Mutex
	closed  bool // set when the room is removed from the registry
	members []*Member
}

func newRoom(id, name string, maxUsers int) *Room {
	return &Room{
		id:        id,
		name:      name,
		maxUsers:  maxUsers,
		createdAt: time.Now(),
	}
}

func (r *Room) ID() string   { return r.id }
func (r *Room) Name() string { return r.name }
func (r *Room) MaxUsers() int { return r.maxUsers }

// join adds a member, enforcing capacity and username uniqueness atomically.
func (r *Room) join(m *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return newRoomNotFoundError(r.id)
	}
	if len(r.members) >= r.maxUsers {
		return newRoomFullError(len(r.members), r.maxUsers)
	}
	for _, existing := range r.members {
		if existing.Username == m.Username {
			return newUsernameTakenError(m.Username)
		}
	}

	r.members = append(r.members, m)
	return nil
}

// leave removes the member with the given username. If the room is empty
// afterwards it is marked closed under the same lock, so a racing join that
// still holds a pointer to the room observes RoomNotFound instead of
// resurrecting it. Safe to call twice for the same username.
func (r *Room) leave(username string) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.members {
		if m.Username == username {
			r.members = append(r.members[:i], r.members[i+1:]...)
			removed = true
			break
		}
	}

	if removed && len(r.members) == 0 {
		r.closed = true
		empty = true
	}
	return removed, empty
}

// snapshot returns a point-in-time view of the room.
func (r *Room) snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]string, len(r.members))
	for i, m := range r.members {
		users[i] = m.Username
	}
	return RoomSnapshot{
		ID:       r.id,
		Name:     r.name,
		MaxUsers: r.maxUsers,
		Users:    users,
	}
}

func (r *Room) memberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// broadcast enqueues the message for every member except exclude. Enqueuing
// under the lock in submission order gives each member FIFO delivery. The
// returned members had full queues; the caller must invoke their drop
// callbacks after releasing all locks.
func (r *Room) broadcast(m Message, exclude string) []*Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	var overflowed []*Member
	for _, member := range r.members {
		if exclude != "" && member.Username == exclude {
			continue
		}
		select {
		case member.out <- m:
		default:
			overflowed = append(overflowed, member)
		}
	}
	return overflowed
}
