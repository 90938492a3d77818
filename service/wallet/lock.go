package wallet

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Locker serializes nonce assignment per address. Share one Locker between
// every service that can sign for the same address.
type Locker struct {
	mux   sync.Mutex
	locks map[common.Address]*addressLock
}

type addressLock struct {
	sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: map[common.Address]*addressLock{}}
}

// Lock blocks until the address is free and returns its unlock func.
func (l *Locker) Lock(address common.Address) func() {
	l.mux.Lock()
	m, ok := l.locks[address]
	if !ok {
		m = &addressLock{}
		l.locks[address] = m
	}
	m.refs++
	l.mux.Unlock()

	m.Lock()
	return func() {
		m.Unlock()

		l.mux.Lock()
		defer l.mux.Unlock()

		if m.refs--; m.refs == 0 {
			delete(l.locks, address)
		}
	}
}

func (l *Locker) size() int {
	l.mux.Lock()
	defer l.mux.Unlock()
	return len(l.locks)
}
