package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/edumarket/pkg/dal"
	"github.com/edumarket/services/api/internal/model"
)

// Seed 角色集合为空时从 JSON 文件导入初始数据，返回是否导入
//
// 文件格式为 {"集合": [记录...]}。
func Seed(ctx context.Context, store *dal.Store, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	n, err := store.Count(ctx, model.CollectionRoles)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read seed file: %w", err)
	}
	var data map[string][]dal.Record
	if err := json.Unmarshal(raw, &data); err != nil {
		return false, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if err := store.Import(ctx, data); err != nil {
		return false, err
	}
	return true, nil
}
