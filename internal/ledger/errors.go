package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNoWallet is returned by point lookups that match no wallet row.
	ErrNoWallet = errors.New("wallet not found")

	// ErrWalletExists indicates the unique user_id constraint on wallets rejected an insert.
	ErrWalletExists = errors.New("wallet already exists for user")

	// ErrStorageUnavailable covers connectivity failures: refused connections,
	// dropped sessions, exhausted server connection slots.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrStorageConstraint covers integrity constraint violations and values
	// outside a column's range.
	ErrStorageConstraint = errors.New("storage constraint violation")

	// ErrStorageTimeout covers statement, lock and context deadlines.
	ErrStorageTimeout = errors.New("storage timeout")

	// ErrStorageUnknown is everything the classifier does not recognise.
	ErrStorageUnknown = errors.New("storage failure")
)

const (
	pgUniqueViolation    = "23505"
	pgNumericOutOfRange  = "22003"
	pgQueryCanceled      = "57014"
	pgLockNotAvailable   = "55P03"
	pgTooManyConnections = "53300"
	pgAdminShutdown      = "57P01"
	pgCrashShutdown      = "57P02"
	pgCannotConnectNow   = "57P03"
)

// Classify maps a raw store error onto the storage error taxonomy. The original
// error stays in the chain. Errors already classified are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNoWallet, ErrWalletExists, ErrStorageUnavailable, ErrStorageConstraint, ErrStorageTimeout, ErrStorageUnknown} {
		if errors.Is(err, known) {
			return err
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", ErrStorageTimeout, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"), pgErr.Code == pgNumericOutOfRange:
			return fmt.Errorf("%w: %w", ErrStorageConstraint, err)
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == pgTooManyConnections,
			pgErr.Code == pgAdminShutdown,
			pgErr.Code == pgCrashShutdown,
			pgErr.Code == pgCannotConnectNow:
			return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		case pgErr.Code == pgQueryCanceled, pgErr.Code == pgLockNotAvailable:
			return fmt.Errorf("%w: %w", ErrStorageTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrStorageUnknown, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrStorageTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return fmt.Errorf("%w: %w", ErrStorageUnknown, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
