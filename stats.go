// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import "time"

type RoomStat struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MemberCount int       `json:"member_count"`
	MaxUsers    int       `json:"max_users"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type Stats struct {
	// Connections
	ActiveSessions   int            `json:"active_sessions"`
	TotalConnections uint64         `json:"total_connections"` // history
	ConnectionsPerIP map[string]int `json:"connections_per_ip,omitempty"`

	// Rooms
	TotalRooms int                 `json:"total_rooms"`
	RoomStats  map[string]RoomStat `json:"rooms"`

	// Messages
	MessagesRelayed uint64 `json:"messages_relayed"`
	DroppedMembers  uint64 `json:"dropped_members"`

	// Meta
	Uptime    time.Duration `json:"uptime"`
	Timestamp time.Time     `json:"timestamp"`
}
