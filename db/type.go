package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrDuplicateEntryCode = 1062

	// ErrDuplicateEntry is returned when an insert or update violates a unique index.
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrProofAssetConflict is returned when a proof hash is already bound to a different asset.
	ErrProofAssetConflict = errors.New("proof hash bound to another asset")
	// ErrInvalidRecoveryToken is returned when no identity holds an unexpired matching recovery token.
	ErrInvalidRecoveryToken = errors.New("invalid or expired recovery token")
)

func MysqlErrCode(err error) int {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return 0
	}
	return int(mysqlErr.Number)
}

// IsDuplicateErr reports whether err is a unique index violation on either supported dialect.
func IsDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateEntry) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if MysqlErrCode(err) == ErrDuplicateEntryCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

func translateDuplicate(err error) error {
	if IsDuplicateErr(err) {
		return ErrDuplicateEntry
	}
	return err
}
