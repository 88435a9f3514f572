package ledger

import (
	"github.com/google/uuid"
)

// InjectFault installs fn on an in-memory store. fn is consulted before every
// write (and transaction listing) with the operation name: "insert_wallet",
// "insert_transaction", "insert_transfer", "update_balance", "list_transactions".
// A non-nil return aborts that statement. Passing nil clears the hook.
func InjectFault(s Store, fn func(op string) error) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.fault = fn
	}
}

// FailOn returns a fault hook that fails the nth (1-based) occurrence of op.
func FailOn(op string, nth int, err error) func(string) error {
	seen := 0
	return func(got string) error {
		if got != op {
			return nil
		}
		seen++
		if seen == nth {
			return err
		}
		return nil
	}
}

// AppendOutOfBand inserts a transaction row directly, bypassing the cached
// balance. It simulates writers that do not go through the wallet engine.
func AppendOutOfBand(s Store, entry Transaction) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		now := mem.now()
		entry.CreatedAt, entry.UpdatedAt = now, now
		mem.transactions = append(mem.transactions, entry)
	}
}

// Writes reports how many write statements an in-memory store has committed.
func Writes(s Store) int {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		return mem.writes
	}
	return 0
}
