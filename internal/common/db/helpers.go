package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

// Querier is the statement surface shared by Database and Transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// GetQuerier runs on tx when one is open and on database otherwise.
func GetQuerier(database Database, tx Transaction) Querier {
	if tx != nil {
		return tx
	}
	return database
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// DuplicateKey reports whether err is a MySQL duplicate-entry error anywhere
// in its chain, along with the name of the violated index.
func DuplicateKey(err error) (key string, ok bool) {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) || myErr.Number != mysqlDuplicateEntry {
		return "", false
	}
	return duplicateKeyName(myErr.Message), true
}

// duplicateKeyName reads the index from "Duplicate entry 'v' for key 'k'".
func duplicateKeyName(message string) string {
	_, key, found := strings.Cut(message, " for key ")
	if !found {
		return ""
	}
	return strings.Trim(strings.TrimSpace(key), "`\"'")
}
