// SPDX-License-Identifier: MIT
// Copyright (c) 2025 The termchat Authors

package termchat

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
)

var sessionCounter atomic.Uint64

func generateSessionID() string {
	return fmt.Sprintf("session_%d_%d", time.Now().UnixNano(), sessionCounter.Add(1))
}

func safeGoroutine(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("PANIC RECOVERED in %s: %v\nStack trace:\n%s\n",
					name, r, string(debug.Stack()))
			}
		}()
		fn()
	}()
}
