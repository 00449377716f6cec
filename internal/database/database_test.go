package database

import (
	"context"
	"testing"
	"time"

	"atv-server/internal/config"
	"atv-server/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := config.Load()
	cfg.Database.SQLite.Path = ":memory:"
	db, err := New(cfg)
	if err != nil {
		t.Fatalf("初始化数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAccountCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	now := time.Now()
	acc := &models.Account{
		Nickname:         "测试用户",
		RefreshToken:     "token-1",
		RefreshTokenTime: &now,
		Master:           true,
		Concurrency:      4,
		ChunkSize:        256,
	}
	if err := db.SaveAccount(ctx, acc); err != nil {
		t.Fatalf("保存账号失败: %v", err)
	}
	if acc.ID == 0 {
		t.Fatal("保存后应当分配ID")
	}

	got, err := db.GetAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("查询账号失败: %v", err)
	}
	if got == nil || got.RefreshToken != "token-1" {
		t.Fatalf("账号内容不匹配: %+v", got)
	}
	if got.RefreshTokenTime == nil {
		t.Error("刷新时间丢失")
	}

	got.Nickname = "新昵称"
	if err := db.SaveAccount(ctx, got); err != nil {
		t.Fatalf("更新账号失败: %v", err)
	}
	count, err := db.CountAccounts(ctx)
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if count != 1 {
		t.Errorf("更新不应新增记录: %d", count)
	}

	exists, err := db.ExistsByRefreshToken(ctx, "token-1")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if !exists {
		t.Error("应当能按 refresh token 找到账号")
	}

	master, err := db.GetFirstMaster(ctx)
	if err != nil {
		t.Fatalf("查询主账号失败: %v", err)
	}
	if master == nil || master.ID != acc.ID {
		t.Error("主账号不匹配")
	}

	if err := db.DeleteAccount(ctx, acc.ID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	got, err = db.GetAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got != nil {
		t.Error("删除后不应再查到账号")
	}
}

func TestGetAccountMissing(t *testing.T) {
	db := newTestDB(t)
	got, err := db.GetAccount(context.Background(), 999)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got != nil {
		t.Error("不存在的账号应当返回 nil")
	}
}

func TestSettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	value, err := db.GetSetting(ctx, "missing")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if value != "" {
		t.Errorf("不存在的设置应当返回空串: %s", value)
	}

	if err := db.SetSetting(ctx, "ali_secret", "abc"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := db.SetSetting(ctx, "ali_secret", "def"); err != nil {
		t.Fatalf("覆盖失败: %v", err)
	}

	value, err = db.GetSetting(ctx, "ali_secret")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if value != "def" {
		t.Errorf("设置值不匹配: %s", value)
	}

	has, err := db.HasSetting(ctx, "ali_secret")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if !has {
		t.Error("HasSetting 应当返回 true")
	}

	if err := db.DeleteSetting(ctx, "ali_secret"); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	has, _ = db.HasSetting(ctx, "ali_secret")
	if has {
		t.Error("删除后 HasSetting 应当返回 false")
	}
}

func TestSaveAccountsTransaction(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	accounts := []*models.Account{
		{RefreshToken: "a"},
		{RefreshToken: "b"},
		{RefreshToken: "c"},
	}
	if err := db.SaveAccounts(ctx, accounts); err != nil {
		t.Fatalf("批量保存失败: %v", err)
	}

	list, err := db.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("列出失败: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("账号数量不匹配: %d", len(list))
	}
	// 按 ID 升序返回
	for i := 1; i < len(list); i++ {
		if list[i].ID < list[i-1].ID {
			t.Error("账号应当按ID升序排列")
		}
	}
}
