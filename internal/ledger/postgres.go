package ledger

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	walletColumns      = `id::text, user_id, balance, created_at, updated_at`
	transactionColumns = `id::text, wallet_id::text, type, amount, COALESCE(sender_wallet_id::text, ''),
        COALESCE(receiver_wallet_id::text, ''), description, created_by, created_at, updated_at`
)

// PostgresStore persists wallets and their transaction log in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// WalletByUserID fetches the wallet owned by userID.
func (s *PostgresStore) WalletByUserID(ctx context.Context, userID string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	return scanWallet(row)
}

// Transactions returns every row filed under walletID in insertion order.
func (s *PostgresStore) Transactions(ctx context.Context, walletID string) ([]Transaction, error) {
	return listTransactions(ctx, s.db, walletID)
}

// WithinTx runs fn inside a single database transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Classify(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &postgresTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return Classify(err)
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) InsertWallet(ctx context.Context, wallet Wallet) (Wallet, error) {
	if wallet.ID == "" {
		wallet.ID = uuid.NewString()
	}
	row := t.tx.QueryRow(ctx, `INSERT INTO wallets (id, user_id, balance) VALUES ($1, $2, $3)
        RETURNING `+walletColumns, wallet.ID, wallet.UserID, wallet.Balance)
	created, err := scanWallet(row)
	if err != nil && isUniqueViolation(err) {
		return Wallet{}, ErrWalletExists
	}
	return created, err
}

func (t *postgresTx) LockWallets(ctx context.Context, walletIDs ...string) error {
	ids := uniqueSorted(walletIDs)
	rows, err := t.tx.Query(ctx, `SELECT id::text FROM wallets WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return Classify(err)
	}
	defer rows.Close()

	locked := 0
	for rows.Next() {
		locked++
	}
	if err := rows.Err(); err != nil {
		return Classify(err)
	}
	if locked != len(ids) {
		return ErrNoWallet
	}
	return nil
}

func (t *postgresTx) InsertTransaction(ctx context.Context, entry Transaction) (Transaction, error) {
	return insertTransaction(ctx, t.tx, entry)
}

func (t *postgresTx) InsertTransfer(ctx context.Context, transfer Transfer) (TransferLegs, error) {
	legs := transfer.Legs()
	sent, err := insertTransaction(ctx, t.tx, legs.Sent)
	if err != nil {
		return TransferLegs{}, err
	}
	received, err := insertTransaction(ctx, t.tx, legs.Received)
	if err != nil {
		return TransferLegs{}, err
	}
	return TransferLegs{Sent: sent, Received: received}, nil
}

func (t *postgresTx) Transactions(ctx context.Context, walletID string) ([]Transaction, error) {
	return listTransactions(ctx, t.tx, walletID)
}

func (t *postgresTx) UpdateBalance(ctx context.Context, walletID string, balance decimal.Decimal) (Wallet, error) {
	return updateBalance(ctx, t.tx, walletID, balance)
}

func insertTransaction(ctx context.Context, q querier, entry Transaction) (Transaction, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	row := q.QueryRow(ctx, `INSERT INTO wallet_transactions
        (id, wallet_id, type, amount, sender_wallet_id, receiver_wallet_id, description, created_by)
        VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, NULLIF($6, '')::uuid, $7, $8)
        RETURNING `+transactionColumns,
		entry.ID, entry.WalletID, string(entry.Type), entry.Amount, entry.SenderWalletID, entry.ReceiverWalletID, entry.Description, entry.CreatedBy)
	created, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, Classify(err)
	}
	return created, nil
}

func listTransactions(ctx context.Context, q querier, walletID string) ([]Transaction, error) {
	rows, err := q.Query(ctx, `SELECT `+transactionColumns+` FROM wallet_transactions
        WHERE wallet_id = $1 ORDER BY created_at, seq`, walletID)
	if err != nil {
		return nil, Classify(err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, Classify(err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(err)
	}
	return out, nil
}

func updateBalance(ctx context.Context, q querier, walletID string, balance decimal.Decimal) (Wallet, error) {
	row := q.QueryRow(ctx, `UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2
        RETURNING `+walletColumns, balance, walletID)
	return scanWallet(row)
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	if err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNoWallet
		}
		if isUniqueViolation(err) {
			return Wallet{}, err
		}
		return Wallet{}, Classify(err)
	}
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		entry Transaction
		kind  string
	)
	if err := row.Scan(&entry.ID, &entry.WalletID, &kind, &entry.Amount, &entry.SenderWalletID,
		&entry.ReceiverWalletID, &entry.Description, &entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	entry.Type = TransactionType(kind)
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return entry, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
