package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func createWallet(t *testing.T, s Store, userID string) Wallet {
	t.Helper()
	var created Wallet
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		created, err = tx.InsertWallet(ctx, Wallet{UserID: userID, Balance: decimal.Zero})
		return err
	})
	if err != nil {
		t.Fatalf("create wallet %s: %v", userID, err)
	}
	return created
}

func TestInMemoryStore_InsertWalletUniquePerUser(t *testing.T) {
	s := NewInMemory()
	createWallet(t, s, "user-a")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.InsertWallet(ctx, Wallet{UserID: "user-a"})
		return err
	})
	if !errors.Is(err, ErrWalletExists) {
		t.Fatalf("expected ErrWalletExists, got %v", err)
	}
}

func TestInMemoryStore_WalletByUserIDMissing(t *testing.T) {
	s := NewInMemory()
	if _, err := s.WalletByUserID(context.Background(), "nobody"); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
}

func TestInMemoryStore_TransferLegsFiledPerWallet(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	a := createWallet(t, s, "user-a")
	b := createWallet(t, s, "user-b")

	err := s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.InsertTransfer(ctx, Transfer{SenderWalletID: a.ID, ReceiverWalletID: b.ID, Amount: decimal.NewFromInt(50), CreatedBy: "user-a"})
		return err
	})
	if err != nil {
		t.Fatalf("insert transfer: %v", err)
	}

	sent, _ := s.Transactions(ctx, a.ID)
	received, _ := s.Transactions(ctx, b.ID)
	if len(sent) != 1 || len(received) != 1 {
		t.Fatalf("expected one leg per wallet, got %d and %d", len(sent), len(received))
	}
	if sent[0].Description != SentDescription || received[0].Description != ReceivedDescription {
		t.Fatalf("unexpected leg descriptions: %q %q", sent[0].Description, received[0].Description)
	}
	if sent[0].SenderWalletID != received[0].SenderWalletID || sent[0].ReceiverWalletID != received[0].ReceiverWalletID {
		t.Fatalf("legs must share the sender/receiver pair")
	}
}

func TestInMemoryStore_FailedUnitRollsBack(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	a := createWallet(t, s, "user-a")
	b := createWallet(t, s, "user-b")
	before := Writes(s)

	boom := errors.New("boom")
	InjectFault(s, FailOn("update_balance", 1, boom))

	err := s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.InsertTransfer(ctx, Transfer{SenderWalletID: a.ID, ReceiverWalletID: b.ID, Amount: decimal.NewFromInt(10)}); err != nil {
			return err
		}
		_, err := tx.UpdateBalance(ctx, a.ID, decimal.NewFromInt(-10))
		return err
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected fault, got %v", err)
	}

	if entries, _ := s.Transactions(ctx, a.ID); len(entries) != 0 {
		t.Fatalf("expected no committed rows, got %d", len(entries))
	}
	if Writes(s) != before {
		t.Fatalf("expected write count to stay at %d, got %d", before, Writes(s))
	}
}

func TestInMemoryStore_TxSeesStagedRows(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	a := createWallet(t, s, "user-a")

	err := s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.InsertTransaction(ctx, Transaction{WalletID: a.ID, Type: TypeDeposit, Amount: decimal.NewFromInt(5)}); err != nil {
			return err
		}
		entries, err := tx.Transactions(ctx, a.ID)
		if err != nil {
			return err
		}
		if len(entries) != 1 {
			return fmt.Errorf("expected staged row to be visible, got %d", len(entries))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit: %v", err)
	}
}

func TestInMemoryStore_ConcurrentUnits(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	a := createWallet(t, s, "user-a")

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
				_, err := tx.InsertTransaction(ctx, Transaction{WalletID: a.ID, Type: TypeDeposit, Amount: decimal.NewFromInt(1)})
				return err
			})
			if err != nil {
				t.Errorf("deposit: %v", err)
			}
		}()
	}
	wg.Wait()

	entries, _ := s.Transactions(ctx, a.ID)
	if len(entries) != workers {
		t.Fatalf("expected %d rows, got %d", workers, len(entries))
	}
}

func TestInMemoryStore_LockWalletsUnknown(t *testing.T) {
	s := NewInMemory()
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.LockWallets(ctx, "missing")
	})
	if !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
}
