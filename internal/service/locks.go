package service

import "sync"

// TicketLocks serializes commit and publish per ticket. The row lock
// alone is not enough for delivery order: it is released at commit,
// so two transitions could commit in one order and publish in the
// other. Holding the ticket's lock from before the transaction until
// after publish makes fanout order match commit order. The lock is
// in-process only and is never held while waiting on another ticket.
type TicketLocks struct {
	mu    sync.Mutex
	locks map[string]*ticketLock
}

type ticketLock struct {
	mu   sync.Mutex
	refs int
}

// NewTicketLocks builds an empty lock table. One instance is shared
// by every service that publishes ticket-scoped events.
func NewTicketLocks() *TicketLocks {
	return &TicketLocks{locks: make(map[string]*ticketLock)}
}

// Lock acquires the ticket's lock, creating it on first use.
func (t *TicketLocks) Lock(ticketID string) {
	t.mu.Lock()
	lock, ok := t.locks[ticketID]
	if !ok {
		lock = &ticketLock{}
		t.locks[ticketID] = lock
	}
	lock.refs++
	t.mu.Unlock()
	lock.mu.Lock()
}

// Unlock releases the ticket's lock and frees it once no caller holds
// or awaits it.
func (t *TicketLocks) Unlock(ticketID string) {
	t.mu.Lock()
	lock := t.locks[ticketID]
	lock.refs--
	if lock.refs == 0 {
		delete(t.locks, ticketID)
	}
	t.mu.Unlock()
	lock.mu.Unlock()
}
