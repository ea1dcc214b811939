// Package daltest 测试用内存文档存储
package daltest

import (
	"context"
	"testing"

	"github.com/edumarket/pkg/config"
	"github.com/edumarket/pkg/dal"
	"github.com/edumarket/pkg/database"
	"github.com/stretchr/testify/require"
)

// NewStore 创建内存 sqlite 存储，并导入 seed
func NewStore(t testing.TB, seed map[string][]dal.Record) *dal.Store {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{Driver: "sqlite", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	s := dal.NewStore(db)
	require.NoError(t, s.Migrate())
	if len(seed) > 0 {
		require.NoError(t, s.Import(context.Background(), seed))
	}
	return s
}
