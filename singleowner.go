// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package ganesh

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
)

// SingleOwner enforces the single-owner threading discipline of a
// ProxyProvider: every mutating call must come from the same goroutine.
// It is not a lock — it never serializes access — it converts cross-
// goroutine misuse into an immediate panic instead of a silent data race
// on the key table and surface reference counts.
//
// The owning goroutine is pinned on the first check. A nil *SingleOwner
// disables checking; all methods are nil-receiver safe.
type SingleOwner struct {
	mu    sync.Mutex
	owner uint64 // goroutine id; 0 = not yet pinned
}

// check pins the owner on first use and panics if a later call arrives
// from a different goroutine. Reentrant calls from the owner are fine.
func (o *SingleOwner) check() {
	if o == nil {
		return
	}
	id := goroutineID()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.owner == 0 {
		o.owner = id
		return
	}
	if o.owner != id {
		panic(fmt.Sprintf("ganesh: single-owner violation: call from goroutine %d, owner is goroutine %d", id, o.owner))
	}
}

// goroutineID parses the current goroutine's id from the runtime stack
// header ("goroutine N [running]:"). Slow, but this is a contract check
// on API entry points, not a hot loop.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	id, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
