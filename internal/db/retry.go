package db

import (
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// IsRetryable reports whether a failed operation may succeed when attempted again.
type IsRetryable func(err error) bool

const DefaultMaxRetries = 3

// MySQL server error numbers for transactions that lost a lock race.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// Try executes an operation, retrying ledger lock conflicts up to DefaultMaxRetries times.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsLockConflict)
}

// WithRetries executes op, retrying while isRetryable accepts the error.
// It attempts the operation up to maxRetries+1 times with a small incremental backoff.
func WithRetries(op Operation, maxRetries int, isRetryable IsRetryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !isRetryable(err) {
			break
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsLockConflict checks if an error from MySQL is a deadlock or lock wait timeout.
// InnoDB rolls back the whole transaction in both cases, so re-running it is safe.
func IsLockConflict(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWaitTimeout
	}
	return false
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
// Concurrent upserts against a unique index can fail this way and succeed on retry.
func IsMongoDuplicateKeyError(err error) bool {
	var e mongo.WriteException
	if errors.As(err, &e) {
		for _, we := range e.WriteErrors {
			if we.Code == 11000 {
				return true
			}
		}
	}
	return false
}
