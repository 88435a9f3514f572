package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates the kinds of rows kept in the transaction log.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeCredit     TransactionType = "credit"
	TypeDebit      TransactionType = "debit"
	TypeTransfer   TransactionType = "transfer"
)

const (
	// SentDescription labels the transfer leg filed under the sender's wallet.
	SentDescription = "sent"
	// ReceivedDescription labels the transfer leg filed under the receiver's wallet.
	ReceivedDescription = "received"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeCredit, TypeDebit, TypeTransfer:
		return true
	}
	return false
}

// Wallet is a user's stored-value account. Balance is a cached projection of
// the wallet's transaction log.
type Wallet struct {
	ID        string
	UserID    string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is an immutable row of the log, filed under WalletID. Sender and
// receiver wallet ids are only populated for transfers.
type Transaction struct {
	ID               string
	WalletID         string
	Type             TransactionType
	Amount           decimal.Decimal
	SenderWalletID   string
	ReceiverWalletID string
	Description      string
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Transfer is a single economic event moving Amount between two wallets. It is
// persisted as two legs, one filed under each wallet.
type Transfer struct {
	SenderWalletID   string
	ReceiverWalletID string
	Amount           decimal.Decimal
	CreatedBy        string
}

// TransferLegs holds both persisted rows of a transfer.
type TransferLegs struct {
	Sent     Transaction
	Received Transaction
}

// Legs expands the transfer into its sender-side and receiver-side rows.
func (t Transfer) Legs() TransferLegs {
	leg := func(walletID, description string) Transaction {
		return Transaction{
			WalletID:         walletID,
			Type:             TypeTransfer,
			Amount:           t.Amount,
			SenderWalletID:   t.SenderWalletID,
			ReceiverWalletID: t.ReceiverWalletID,
			Description:      description,
			CreatedBy:        t.CreatedBy,
		}
	}
	return TransferLegs{
		Sent:     leg(t.SenderWalletID, SentDescription),
		Received: leg(t.ReceiverWalletID, ReceivedDescription),
	}
}

// Store is the relational ledger backend. Point reads run outside any atomic
// unit; every write, including balance corrections, goes through WithinTx.
type Store interface {
	WalletByUserID(ctx context.Context, userID string) (Wallet, error)
	Transactions(ctx context.Context, walletID string) ([]Transaction, error)
	// WithinTx runs fn as one atomic unit. Every write made through tx commits
	// when fn returns nil and is rolled back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of statements available inside an atomic unit.
type Tx interface {
	InsertWallet(ctx context.Context, wallet Wallet) (Wallet, error)
	// LockWallets takes row locks on the given wallets in a deterministic order
	// so that concurrent units touching the same wallets serialize.
	LockWallets(ctx context.Context, walletIDs ...string) error
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	InsertTransfer(ctx context.Context, t Transfer) (TransferLegs, error)
	Transactions(ctx context.Context, walletID string) ([]Transaction, error)
	UpdateBalance(ctx context.Context, walletID string, balance decimal.Decimal) (Wallet, error)
}
