// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import "time"

type ServerConfig struct {
	Addr                string
	MaxFrameSize        int
	WriteTimeout        time.Duration
	QueueSize           int // per-member outbound queue capacity
	MaxConnections      int
	MaxConnectionsPerIP int
	ChatEcho            bool // deliver the sender's own chat lines back
	AllowedOrigins      []string
	RateLimit           RateLimiterConfig
}

type RateLimiterConfig struct {
	Enabled         bool
	PerSessionRate  float64
	PerSessionBurst int
	PerIPRate       float64
	PerIPBurst      int
	MaxViolations   int
	CleanupInterval time.Duration
	EntryTTL        time.Duration
}

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:                "127.0.0.1:8080",
		MaxFrameSize:        64 * 1024,
		WriteTimeout:        10 * time.Second,
		QueueSize:           256,
		MaxConnections:      1000,
		MaxConnectionsPerIP: 32,
		ChatEcho:            true,
		RateLimit:           DefaultRateLimiterConfig(),
	}
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Enabled:         true,
		PerSessionRate:  20,
		PerSessionBurst: 40,
		PerIPRate:       100,
		PerIPBurst:      200,
		MaxViolations:   10,
		CleanupInterval: time.Minute,
		EntryTTL:        5 * time.Minute,
	}
}
