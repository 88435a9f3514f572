package wallet

import (
	"github.com/shopspring/decimal"

	"github.com/ronalsilva/waller-microservice/internal/ledger"
)

// Fold derives the balance of walletID from its transaction log. Only rows
// filed under walletID are counted: each transfer leg lives under its own
// wallet, so the other wallet's leg must not be folded a second time.
func Fold(walletID string, entries []ledger.Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range entries {
		if e.WalletID != walletID {
			continue
		}
		switch e.Type {
		case ledger.TypeDeposit, ledger.TypeCredit:
			balance = balance.Add(e.Amount)
		case ledger.TypeWithdrawal, ledger.TypeDebit:
			balance = balance.Sub(e.Amount)
		case ledger.TypeTransfer:
			if e.SenderWalletID == walletID {
				balance = balance.Sub(e.Amount)
			} else if e.ReceiverWalletID == walletID {
				balance = balance.Add(e.Amount)
			}
		}
	}
	return balance
}

// Amounts are stored as numeric(20,2): two fractional digits, eighteen integral.
const amountScale = 2

var amountCeiling = decimal.New(1, 18)

// checkAmount rejects amounts the store cannot hold exactly. Callers check the
// sign themselves.
func checkAmount(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(amountScale)) || amount.Abs().GreaterThanOrEqual(amountCeiling) {
		return ErrInvalidAmount
	}
	return nil
}
