package alist

import (
	"context"
	"strconv"

	"gorm.io/gorm/clause"

	"atv-server/internal/logger"
	"atv-server/internal/models"
)

// Writer 把令牌、挂载和设置写入 AList
// 运行状态不同时由不同实现承担：停止时直写 data.db，运行中走管理接口
type Writer interface {
	UpsertToken(ctx context.Context, token *models.AListToken) error
	SaveStorage(ctx context.Context, storage *models.AListStorage) error
	DeleteStorage(ctx context.Context, id int) error
	EnableStorage(ctx context.Context, id int) error
	SetSetting(ctx context.Context, item *models.AListSettingItem) error
}

// Writer 按当前运行状态返回合适的写入器和状态值
// AList 启动中时返回 ErrStarting，调用方可以先落库稍后重试
func (g *Gateway) Writer(ctx context.Context) (Writer, int, error) {
	status := g.CheckStatus(ctx)
	switch status {
	case StatusRunning:
		return &apiWriter{g: g}, status, nil
	case StatusStarting:
		return &dbWriter{g: g}, status, ErrStarting
	default:
		return &dbWriter{g: g}, status, nil
	}
}

// dbWriter 直接写 AList 的 data.db
type dbWriter struct {
	g *Gateway
}

func (w *dbWriter) UpsertToken(_ context.Context, token *models.AListToken) error {
	return w.g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(token).Error
}

func (w *dbWriter) SaveStorage(_ context.Context, storage *models.AListStorage) error {
	if err := w.g.db.Where("id = ?", storage.ID).Delete(&models.AListStorage{}).Error; err != nil {
		return err
	}
	return w.g.db.Create(storage).Error
}

func (w *dbWriter) DeleteStorage(_ context.Context, id int) error {
	return w.g.db.Where("id = ?", id).Delete(&models.AListStorage{}).Error
}

func (w *dbWriter) EnableStorage(_ context.Context, id int) error {
	// 未运行时直接把记录置为启用
	return w.g.db.Model(&models.AListStorage{}).Where("id = ?", id).Update("disabled", false).Error
}

func (w *dbWriter) SetSetting(_ context.Context, item *models.AListSettingItem) error {
	return w.g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(item).Error
}

// apiWriter 走 AList 管理接口
// 运行中的 AList 在内存里缓存令牌，必须通过接口写入才会立即生效；
// 挂载记录仍然直写数据库，挂载在启用时才会被 AList 加载
type apiWriter struct {
	g *Gateway
}

func (w *apiWriter) UpsertToken(ctx context.Context, token *models.AListToken) error {
	return w.g.callAdmin(ctx, "/api/admin/token/update", token)
}

func (w *apiWriter) SaveStorage(ctx context.Context, storage *models.AListStorage) error {
	storage.Disabled = true
	db := &dbWriter{g: w.g}
	return db.SaveStorage(ctx, storage)
}

func (w *apiWriter) DeleteStorage(ctx context.Context, id int) error {
	if err := w.g.callAdmin(ctx, "/api/admin/storage/delete?id="+strconv.Itoa(id), nil); err != nil {
		logger.Warn("删除挂载失败: %d, 错误: %v", id, err)
		return err
	}
	return nil
}

func (w *apiWriter) EnableStorage(ctx context.Context, id int) error {
	return w.g.callAdmin(ctx, "/api/admin/storage/enable?id="+strconv.Itoa(id), nil)
}

func (w *apiWriter) SetSetting(ctx context.Context, item *models.AListSettingItem) error {
	return w.g.callAdmin(ctx, "/api/admin/setting/save", []*models.AListSettingItem{item})
}
