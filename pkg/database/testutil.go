package database

import (
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool creates a pgxmock pool that satisfies DBTX and TxBeginner.
// Expected SQL is matched as a regular expression.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
}

// LockTimeoutError is what PostgreSQL returns when lock_timeout expires while
// waiting on a row lock.
func LockTimeoutError() error {
	return &pgconn.PgError{Code: codeLockNotAvailable, Message: "canceling statement due to lock timeout"}
}
