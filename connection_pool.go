// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"sync"
)

// ConnectionPool caps the number of concurrently served connections, both
// globally and per source IP.
type ConnectionPool struct {
	maxConnections      int
	maxConnectionsPerIP int
	activeConns         map[string]int // IP -> connection count
	totalActive         int
	mu                  sync.RWMutex
	semaphore           chan struct{} // limits total active connections
}

func NewConnectionPool(maxTotal, maxPerIP int) *ConnectionPool {
	return &ConnectionPool{
		maxConnections:      maxTotal,
		maxConnectionsPerIP: maxPerIP,
		activeConns:         make(map[string]int),
		semaphore:           make(chan struct{}, maxTotal),
	}
}

func (cp *ConnectionPool) Acquire(clientIP string) error {
	select {
	case cp.semaphore <- struct{}{}:
	default:
		return ErrMaxConnReached
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.maxConnectionsPerIP > 0 && cp.activeConns[clientIP] >= cp.maxConnectionsPerIP {
		<-cp.semaphore // release the slot
		return newMaxConnPerIPReachedError(clientIP)
	}

	cp.activeConns[clientIP]++
	cp.totalActive++
	return nil
}

func (cp *ConnectionPool) Release(clientIP string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if count := cp.activeConns[clientIP]; count > 0 {
		cp.activeConns[clientIP]--
		if cp.activeConns[clientIP] == 0 {
			delete(cp.activeConns, clientIP)
		}
		cp.totalActive--
	}

	<-cp.semaphore
}

func (cp *ConnectionPool) Stats() (total int, perIP map[string]int) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	ipCopy := make(map[string]int)
	for ip, count := range cp.activeConns {
		ipCopy[ip] = count
	}

	return cp.totalActive, ipCopy
}
