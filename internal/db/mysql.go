package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/saas-gateway/internal/config"
	"github.com/jmoiron/sqlx"
)

// ErrCodeDuplicateEntry is MySQL's ER_DUP_ENTRY.
const ErrCodeDuplicateEntry = 1062

// NewMySQLConnection opens a *sqlx.DB with sensible pool/timeouts.
func NewMySQLConnection(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("empty MySQL DSN")
	}

	return open("mysql", cfg, 5*time.Second)
}

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == ErrCodeDuplicateEntry
}
