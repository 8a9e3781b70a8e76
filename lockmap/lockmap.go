// Package lockmap provides mutual exclusion keyed by account address. The
// dispatcher holds the locks of every account a transition writes, so
// conflicting writes from concurrent transitions serialize; of two racing
// settlements against the same record exactly one commits, and the other
// fails validation because the record no longer exists.
package lockmap

import (
	"sync"

	"swapescrow/crypto"
)

type holderLock struct {
	holders int
	mu      sync.Mutex
}

// Lockmap hands out one mutex per in-use address and frees it when the last
// holder releases.
type Lockmap struct {
	l sync.Mutex
	m map[crypto.Address]*holderLock
}

func New(initSize int) *Lockmap {
	return &Lockmap{
		m: make(map[crypto.Address]*holderLock, initSize),
	}
}

// Lock blocks until the caller holds the mutex for key.
func (l *Lockmap) Lock(key crypto.Address) {
	l.l.Lock()
	hl, ok := l.m[key]
	if ok {
		hl.holders++
		l.l.Unlock()
		hl.mu.Lock()
		return
	}
	hl = &holderLock{holders: 1}
	hl.mu.Lock()
	l.m[key] = hl
	l.l.Unlock()
}

// Unlock releases the mutex for key, discarding it once no holder remains.
func (l *Lockmap) Unlock(key crypto.Address) {
	l.l.Lock()
	hl := l.m[key]
	if hl.holders > 1 {
		hl.holders--
		l.l.Unlock()
		hl.mu.Unlock()
		return
	}
	delete(l.m, key)
	l.l.Unlock()
	hl.mu.Unlock()
}

// Locks returns the number of addresses currently locked or waited on.
func (l *Lockmap) Locks() int {
	l.l.Lock()
	defer l.l.Unlock()
	return len(l.m)
}
