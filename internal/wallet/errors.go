package wallet

import "errors"

var (
	// ErrWalletNotFound indicates the user owns no wallet.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrDuplicateWallet indicates the user already owns a wallet.
	ErrDuplicateWallet = errors.New("wallet already exists")

	// ErrInsufficientFunds covers non-positive transfer amounts and amounts above
	// the sender's recomputed balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSelfTransfer indicates sender and receiver are the same user.
	ErrSelfTransfer = errors.New("cannot transfer to self")

	// ErrInvalidAmount indicates a negative opening balance, or an amount with
	// more than two fractional digits or too many integral digits to store.
	ErrInvalidAmount = errors.New("invalid amount")
)
