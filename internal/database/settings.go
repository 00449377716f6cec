package database

import (
	"context"

	"atv-server/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetSetting 读取设置项，不存在时返回空字符串
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var setting models.Setting
	err := db.gorm.WithContext(ctx).Where("setting_key = ?", key).First(&setting).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// HasSetting 判断设置项是否存在（区分空值和缺失，用于一次性迁移标记）
func (db *DB) HasSetting(ctx context.Context, key string) (bool, error) {
	var count int64
	err := db.gorm.WithContext(ctx).Model(&models.Setting{}).
		Where("setting_key = ?", key).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetSetting 写入设置项（存在则覆盖）
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	return db.RetryOnLock(ctx, 5, func() error {
		setting := models.Setting{Key: key, Value: value}
		return db.gorm.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"setting_value"}),
		}).Create(&setting).Error
	})
}

// DeleteSetting 删除设置项
func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	return db.gorm.WithContext(ctx).Where("setting_key = ?", key).Delete(&models.Setting{}).Error
}
