// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bnb-chain/verivid-hub/config"
	"github.com/bnb-chain/verivid-hub/db"
)

var seq int64

// NewDB returns a migrated in-memory sqlite database private to the test. A single connection
// serializes every statement, which is what sqlite needs for concurrent writers.
func NewDB(t testing.TB) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.DBConfig{
		Dialect:      config.DBDialectSqlite3,
		Url:          fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, atomic.AddInt64(&seq, 1)),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	}
	gormDB := config.InitDBWithConfig(cfg, false)
	require.NoError(t, db.AutoMigrateDB(gormDB))
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gormDB
}

func NewDao(t testing.TB) db.VeriVidDao {
	return db.NewVeriVidSvcDB(NewDB(t))
}
