package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, ErrStorageConstraint},
		{"fk violation", &pgconn.PgError{Code: "23503"}, ErrStorageConstraint},
		{"numeric overflow", &pgconn.PgError{Code: "22003"}, ErrStorageConstraint},
		{"connection failure", &pgconn.PgError{Code: "08006"}, ErrStorageUnavailable},
		{"too many connections", &pgconn.PgError{Code: "53300"}, ErrStorageUnavailable},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, ErrStorageTimeout},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, ErrStorageTimeout},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), ErrStorageTimeout},
		{"syntax", &pgconn.PgError{Code: "42601"}, ErrStorageUnknown},
		{"opaque", errors.New("whatever"), ErrStorageUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("expected original error to stay in the chain")
			}
		})
	}
}

func TestClassifyKeepsKnownErrors(t *testing.T) {
	if got := Classify(ErrNoWallet); got != ErrNoWallet {
		t.Fatalf("expected ErrNoWallet unchanged, got %v", got)
	}
	if Classify(nil) != nil {
		t.Fatal("expected nil for nil")
	}
}
