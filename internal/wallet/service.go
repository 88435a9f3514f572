package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ronalsilva/waller-microservice/internal/ledger"
	"github.com/ronalsilva/waller-microservice/internal/logging"
	"github.com/ronalsilva/waller-microservice/internal/metrics"
	"github.com/ronalsilva/waller-microservice/internal/notification"
)

const depositDescription = "deposit"

const openingDescription = "opening balance"

// Service owns every balance-affecting operation. It holds no in-process lock:
// concurrent mutations on the same wallet are serialized by the store.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService builds a wallet engine. notifier and m may be nil.
func NewService(store ledger.Store, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logging.Component(logger, "wallet"),
	}
}

// ComputeBalance folds the wallet's transaction log into its true balance.
func (s *Service) ComputeBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	entries, err := s.store.Transactions(ctx, walletID)
	if err != nil {
		return decimal.Zero, ledger.Classify(err)
	}
	return Fold(walletID, entries), nil
}

// WalletFor returns the wallet owned by userID.
func (s *Service) WalletFor(ctx context.Context, userID string) (ledger.Wallet, error) {
	w, err := s.store.WalletByUserID(ctx, userID)
	if err != nil {
		return ledger.Wallet{}, mapStoreError(err)
	}
	return w, nil
}

// GetBalance returns the true balance of the user's wallet. When the cached
// column disagrees with the log, the balance is recomputed under the wallet's
// row lock and written back, so a concurrently committed mutation is never
// overwritten with a stale value.
func (s *Service) GetBalance(ctx context.Context, userID string) (ledger.Wallet, error) {
	w, err := s.WalletFor(ctx, userID)
	if err != nil {
		return ledger.Wallet{}, err
	}
	truth, err := s.ComputeBalance(ctx, w.ID)
	if err != nil {
		return ledger.Wallet{}, err
	}
	if truth.Equal(w.Balance) {
		return w, nil
	}

	var healed ledger.Wallet
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.LockWallets(ctx, w.ID); err != nil {
			return err
		}
		updated, err := recompute(ctx, tx, w.ID)
		if err != nil {
			return err
		}
		healed = updated
		return nil
	})
	if err != nil {
		return ledger.Wallet{}, mapStoreError(err)
	}
	s.logger.Warn("balance drift corrected",
		slog.String("wallet_id", w.ID),
		slog.String("cached", w.Balance.String()),
		slog.String("computed", healed.Balance.String()),
	)
	s.metrics.BalanceReconciled()
	return healed, nil
}

// Create opens a wallet for userID. A positive initial balance is recorded as
// an opening credit so the log stays authoritative.
func (s *Service) Create(ctx context.Context, userID string, initial decimal.Decimal) (w ledger.Wallet, err error) {
	defer func() { s.metrics.WalletOp("create", err) }()

	if initial.IsNegative() {
		return ledger.Wallet{}, ErrInvalidAmount
	}
	if err := checkAmount(initial); err != nil {
		return ledger.Wallet{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		created, err := tx.InsertWallet(ctx, ledger.Wallet{UserID: userID, Balance: initial})
		if err != nil {
			return err
		}
		if initial.IsPositive() {
			if _, err := tx.InsertTransaction(ctx, ledger.Transaction{
				WalletID:    created.ID,
				Type:        ledger.TypeCredit,
				Amount:      initial,
				Description: openingDescription,
				CreatedBy:   userID,
			}); err != nil {
				return err
			}
		}
		w = created
		return nil
	})
	if err != nil {
		return ledger.Wallet{}, mapStoreError(err)
	}
	return w, nil
}

// Deposit credits amount to the user's wallet. Non-positive amounts write
// nothing and return the reconciled wallet.
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (w ledger.Wallet, err error) {
	defer func() { s.metrics.WalletOp("deposit", err) }()

	if !amount.IsPositive() {
		return s.GetBalance(ctx, userID)
	}
	if err := checkAmount(amount); err != nil {
		return ledger.Wallet{}, err
	}
	current, err := s.WalletFor(ctx, userID)
	if err != nil {
		return ledger.Wallet{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.LockWallets(ctx, current.ID); err != nil {
			return err
		}
		if _, err := tx.InsertTransaction(ctx, ledger.Transaction{
			WalletID:    current.ID,
			Type:        ledger.TypeDeposit,
			Amount:      amount,
			Description: depositDescription,
			CreatedBy:   userID,
		}); err != nil {
			return err
		}
		updated, err := recompute(ctx, tx, current.ID)
		if err != nil {
			return err
		}
		w = updated
		return nil
	})
	if err != nil {
		return ledger.Wallet{}, mapStoreError(err)
	}
	return w, nil
}

// Transfer moves amount from the sender's wallet to the receiver's and returns
// the leg filed under the sender.
func (s *Service) Transfer(ctx context.Context, senderUserID string, amount decimal.Decimal, receiverUserID string) (sent ledger.Transaction, err error) {
	defer func() { s.metrics.WalletOp("transfer", err) }()

	if err := checkAmount(amount); err != nil {
		return ledger.Transaction{}, err
	}
	sender, err := s.WalletFor(ctx, senderUserID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	available, err := s.ComputeBalance(ctx, sender.ID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if !amount.IsPositive() || amount.GreaterThan(available) {
		return ledger.Transaction{}, ErrInsufficientFunds
	}
	if senderUserID == receiverUserID {
		return ledger.Transaction{}, ErrSelfTransfer
	}
	receiver, err := s.WalletFor(ctx, receiverUserID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.LockWallets(ctx, sender.ID, receiver.ID); err != nil {
			return err
		}
		entries, err := tx.Transactions(ctx, sender.ID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(Fold(sender.ID, entries)) {
			return ErrInsufficientFunds
		}

		legs, err := tx.InsertTransfer(ctx, ledger.Transfer{
			SenderWalletID:   sender.ID,
			ReceiverWalletID: receiver.ID,
			Amount:           amount,
			CreatedBy:        senderUserID,
		})
		if err != nil {
			return err
		}
		if _, err := recompute(ctx, tx, sender.ID); err != nil {
			return err
		}
		if _, err := recompute(ctx, tx, receiver.ID); err != nil {
			return err
		}
		sent = legs.Sent
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, mapStoreError(err)
	}

	s.notifyReceived(ctx, receiverUserID, sent)
	return sent, nil
}

// ListTransactions returns the rows filed under walletID. Store failures are
// logged and yield an empty list.
func (s *Service) ListTransactions(ctx context.Context, walletID string) []ledger.Transaction {
	entries, err := s.store.Transactions(ctx, walletID)
	if err != nil {
		s.logger.Error("list transactions failed",
			slog.String("wallet_id", walletID),
			slog.Any("error", ledger.Classify(err)),
		)
		return []ledger.Transaction{}
	}
	if entries == nil {
		return []ledger.Transaction{}
	}
	return entries
}

func (s *Service) notifyReceived(ctx context.Context, receiverUserID string, leg ledger.Transaction) {
	if s.notifier == nil {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindTransferReceived,
		Destination: receiverUserID,
		Body:        fmt.Sprintf("you received %s", leg.Amount.String()),
		Reference:   leg.ID,
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("transfer notification failed",
			slog.String("transaction_id", leg.ID),
			slog.Any("error", err),
		)
	}
}

func recompute(ctx context.Context, tx ledger.Tx, walletID string) (ledger.Wallet, error) {
	entries, err := tx.Transactions(ctx, walletID)
	if err != nil {
		return ledger.Wallet{}, err
	}
	return tx.UpdateBalance(ctx, walletID, Fold(walletID, entries))
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrNoWallet):
		return ErrWalletNotFound
	case errors.Is(err, ledger.ErrWalletExists):
		return ErrDuplicateWallet
	case errors.Is(err, ErrInsufficientFunds):
		return err
	}
	return ledger.Classify(err)
}
