package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/khavishbhundoo/mysql-pdo-class/pkg/config"
)

// Errors returned from this package may be tested against these errors
// with errors.Is.
var (
	// ErrConnection is matched by every *ConnectError.
	ErrConnection = errors.New("connection failed")

	// ErrNonTransactionalEngine is returned by the transaction methods when
	// the session is configured for MyISAM.
	ErrNonTransactionalEngine = errors.New("MyISAM storage engine does not support transactions, change to a storage engine such as InnoDB")

	// ErrNoStatement is returned when binding, executing or fetching before
	// a statement was prepared with Query.
	ErrNoStatement = errors.New("no prepared statement")

	// ErrMixedPlaceholders is returned when named and positional parameters
	// are bound to the same statement.
	ErrMixedPlaceholders = errors.New("cannot mix named and positional parameters")

	// ErrInvalidParam is returned for a placeholder that is neither a name
	// nor a 1-based position, or a value that cannot take the requested type.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrTransactionOpen is returned by BeginTransaction while a transaction
	// is already open on the session.
	ErrTransactionOpen = errors.New("a transaction is already open")

	// ErrUnknownDriver is returned by NewDB for unsupported drivers.
	ErrUnknownDriver = config.ErrUnknownDriver
)

// ConnectError reports a failure to establish the session connection.
type ConnectError struct {
	Driver string
	Addr   string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connection failed: %s %s: %v", e.Driver, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool { return target == ErrConnection }

// IsDuplicateEntry reports whether err is a unique or primary key violation
// from any of the supported drivers.
func IsDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// ER_DUP_ENTRY
		return myErr.Number == 1062
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(liteErr.Error(), "UNIQUE")
	}

	return false
}
