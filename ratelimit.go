// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterManager throttles inbound messages per session and per source
// IP with token buckets. Entries for idle sessions and IPs are evicted on a
// background cleanup loop.
type RateLimiterManager struct {
	config RateLimiterConfig

	sessionsMu sync.Mutex
	sessions   map[string]*limiterEntry

	ipsMu sync.Mutex
	ips   map[string]*limiterEntry

	quit chan struct{}
}

func NewRateLimiterManager(config RateLimiterConfig) *RateLimiterManager {
	rl := &RateLimiterManager{
		config:   config,
		sessions: make(map[string]*limiterEntry),
		ips:      make(map[string]*limiterEntry),
		quit:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// AllowSession returns true if the session has a token available. Called for
// each inbound message.
func (r *RateLimiterManager) AllowSession(sessionID string) bool {
	if sessionID == "" {
		sessionID = "__empty__"
	}

	r.sessionsMu.Lock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		entry = &limiterEntry{
			limiter:  rate.NewLimiter(rate.Limit(r.config.PerSessionRate), r.config.PerSessionBurst),
			lastSeen: time.Now(),
		}
		r.sessions[sessionID] = entry
	}
	entry.lastSeen = time.Now()
	lim := entry.limiter
	r.sessionsMu.Unlock()

	return lim.Allow()
}

// AllowIP returns true if the IP has a token available. ip should be a
// canonical string (e.g., net.IP.String()).
func (r *RateLimiterManager) AllowIP(ip string) bool {
	if ip == "" {
		ip = "__unknown_ip__"
	}

	r.ipsMu.Lock()
	entry, ok := r.ips[ip]
	if !ok {
		entry = &limiterEntry{
			limiter:  rate.NewLimiter(rate.Limit(r.config.PerIPRate), r.config.PerIPBurst),
			lastSeen: time.Now(),
		}
		r.ips[ip] = entry
	}
	entry.lastSeen = time.Now()
	lim := entry.limiter
	r.ipsMu.Unlock()

	return lim.Allow()
}

// AllowNetAddr is a helper: extracts the IP from a net.Addr.
func (r *RateLimiterManager) AllowNetAddr(addr net.Addr) bool {
	if addr == nil {
		return r.AllowIP("")
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		// fallback to raw string
		return r.AllowIP(addr.String())
	}
	return r.AllowIP(host)
}

func (r *RateLimiterManager) Stop() {
	close(r.quit)
}

func (r *RateLimiterManager) cleanupLoop() {
	t := time.NewTicker(r.config.CleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			r.cleanup()
		case <-r.quit:
			return
		}
	}
}

func (r *RateLimiterManager) cleanup() {
	threshold := time.Now().Add(-r.config.EntryTTL)

	r.sessionsMu.Lock()
	for k, v := range r.sessions {
		if v.lastSeen.Before(threshold) {
			delete(r.sessions, k)
		}
	}
	r.sessionsMu.Unlock()

	r.ipsMu.Lock()
	for k, v := range r.ips {
		if v.lastSeen.Before(threshold) {
			delete(r.ips, k)
		}
	}
	r.ipsMu.Unlock()
}
