package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryStore struct {
	mu           sync.Mutex
	wallets      map[string]Wallet
	walletByUser map[string]string
	transactions []Transaction
	writes       int
	fault        func(op string) error
	now          func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and local development. Atomic units are serialized and staged, so a failing
// unit leaves no trace.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets:      make(map[string]Wallet),
		walletByUser: make(map[string]string),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *inMemoryStore) WalletByUserID(ctx context.Context, userID string) (Wallet, error) {
	if err := ctx.Err(); err != nil {
		return Wallet{}, Classify(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.walletByUser[userID]
	if !ok {
		return Wallet{}, ErrNoWallet
	}
	return s.wallets[id], nil
}

func (s *inMemoryStore) Transactions(ctx context.Context, walletID string) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("list_transactions"); err != nil {
		return nil, err
	}
	return filterByWallet(s.transactions, walletID), nil
}

func (s *inMemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return Classify(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &inMemoryTx{store: s, wallets: make(map[string]Wallet)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, w := range tx.wallets {
		s.wallets[id] = w
		s.walletByUser[w.UserID] = id
	}
	s.transactions = append(s.transactions, tx.transactions...)
	s.writes += tx.writes
	return nil
}

func (s *inMemoryStore) injected(op string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op)
}

// inMemoryTx stages writes until the enclosing unit commits. The store mutex
// is held for its whole lifetime.
type inMemoryTx struct {
	store        *inMemoryStore
	wallets      map[string]Wallet
	transactions []Transaction
	writes       int
}

func (t *inMemoryTx) wallet(id string) (Wallet, bool) {
	if w, ok := t.wallets[id]; ok {
		return w, true
	}
	w, ok := t.store.wallets[id]
	return w, ok
}

func (t *inMemoryTx) InsertWallet(_ context.Context, wallet Wallet) (Wallet, error) {
	if err := t.store.injected("insert_wallet"); err != nil {
		return Wallet{}, err
	}
	if _, exists := t.store.walletByUser[wallet.UserID]; exists {
		return Wallet{}, ErrWalletExists
	}
	for _, staged := range t.wallets {
		if staged.UserID == wallet.UserID {
			return Wallet{}, ErrWalletExists
		}
	}
	if wallet.ID == "" {
		wallet.ID = uuid.NewString()
	}
	now := t.store.now()
	wallet.CreatedAt, wallet.UpdatedAt = now, now
	t.wallets[wallet.ID] = wallet
	t.writes++
	return wallet, nil
}

func (t *inMemoryTx) LockWallets(_ context.Context, walletIDs ...string) error {
	for _, id := range walletIDs {
		if _, ok := t.wallet(id); !ok {
			return ErrNoWallet
		}
	}
	return nil
}

func (t *inMemoryTx) InsertTransaction(_ context.Context, entry Transaction) (Transaction, error) {
	if err := t.store.injected("insert_transaction"); err != nil {
		return Transaction{}, err
	}
	return t.append(entry)
}

func (t *inMemoryTx) InsertTransfer(_ context.Context, transfer Transfer) (TransferLegs, error) {
	if err := t.store.injected("insert_transfer"); err != nil {
		return TransferLegs{}, err
	}
	legs := transfer.Legs()
	sent, err := t.append(legs.Sent)
	if err != nil {
		return TransferLegs{}, err
	}
	received, err := t.append(legs.Received)
	if err != nil {
		return TransferLegs{}, err
	}
	return TransferLegs{Sent: sent, Received: received}, nil
}

func (t *inMemoryTx) append(entry Transaction) (Transaction, error) {
	if _, ok := t.wallet(entry.WalletID); !ok {
		return Transaction{}, ErrStorageConstraint
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := t.store.now()
	entry.CreatedAt, entry.UpdatedAt = now, now
	t.transactions = append(t.transactions, entry)
	t.writes++
	return entry, nil
}

func (t *inMemoryTx) Transactions(_ context.Context, walletID string) ([]Transaction, error) {
	out := filterByWallet(t.store.transactions, walletID)
	return append(out, filterByWallet(t.transactions, walletID)...), nil
}

func (t *inMemoryTx) UpdateBalance(_ context.Context, walletID string, balance decimal.Decimal) (Wallet, error) {
	if err := t.store.injected("update_balance"); err != nil {
		return Wallet{}, err
	}
	w, ok := t.wallet(walletID)
	if !ok {
		return Wallet{}, ErrNoWallet
	}
	w.Balance = balance
	w.UpdatedAt = t.store.now()
	t.wallets[walletID] = w
	t.writes++
	return w, nil
}

func filterByWallet(entries []Transaction, walletID string) []Transaction {
	var out []Transaction
	for _, e := range entries {
		if e.WalletID == walletID {
			out = append(out, e)
		}
	}
	return out
}
