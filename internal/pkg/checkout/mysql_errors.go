package checkout

import (
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/errs"
)

// MySQL server error numbers the completion path reacts to.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrProcMissing     = 1305
	mysqlErrSignalException = 1644
)

func mysqlErrNumber(err error, number uint16) bool {
	var myErr *mysql.MySQLError
	if !errs.As(err, &myErr) {
		return false
	}
	return myErr.Number == number
}

func isDuplicateKey(err error) bool {
	return mysqlErrNumber(err, mysqlErrDuplicateEntry)
}

// isProcedureMissing detects a schema older than the binary: the unified
// completion procedure has not been migrated in yet.
func isProcedureMissing(err error) bool {
	return mysqlErrNumber(err, mysqlErrProcMissing)
}

// signalMessage extracts the MESSAGE_TEXT of a SIGNAL raised inside the
// completion procedure, or "" when err is anything else.
func signalMessage(err error) string {
	var myErr *mysql.MySQLError
	if !errs.As(err, &myErr) {
		return ""
	}
	if myErr.Number != mysqlErrSignalException {
		return ""
	}
	return strings.TrimSpace(myErr.Message)
}
