package database

import (
	"context"

	"atv-server/internal/logger"
	"atv-server/internal/models"

	"gorm.io/gorm"
)

// ListAccounts 按 ID 顺序列出全部账号
func (db *DB) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := db.gorm.WithContext(ctx).Order("id ASC").Find(&accounts).Error; err != nil {
		logger.Debug("数据库: 列出账号失败 - 错误: %v", err)
		return nil, err
	}
	return accounts, nil
}

// GetAccount 根据 ID 获取账号，不存在时返回 nil
func (db *DB) GetAccount(ctx context.Context, id int) (*models.Account, error) {
	var acc models.Account
	err := db.gorm.WithContext(ctx).Where("id = ?", id).First(&acc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		logger.Debug("数据库: 查询账号失败 - ID: %d, 错误: %v", id, err)
		return nil, err
	}
	return &acc, nil
}

// SaveAccount 保存账号（新账号插入，已有账号全量更新）
func (db *DB) SaveAccount(ctx context.Context, acc *models.Account) error {
	return db.RetryOnLock(ctx, 5, func() error {
		return db.gorm.WithContext(ctx).Save(acc).Error
	})
}

// SaveAccounts 批量保存账号（同一事务）
func (db *DB) SaveAccounts(ctx context.Context, accounts []*models.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	return db.RetryOnLock(ctx, 5, func() error {
		return db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, acc := range accounts {
				if err := tx.Save(acc).Error; err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// DeleteAccount 删除账号
func (db *DB) DeleteAccount(ctx context.Context, id int) error {
	result := db.gorm.WithContext(ctx).Where("id = ?", id).Delete(&models.Account{})
	if result.Error != nil {
		logger.Debug("数据库: 删除账号失败 - ID: %d, 错误: %v", id, result.Error)
		return result.Error
	}
	logger.Debug("数据库: 账号删除完成 - ID: %d, 影响行数: %d", id, result.RowsAffected)
	return nil
}

// CountAccounts 获取账号数量
func (db *DB) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	if err := db.gorm.WithContext(ctx).Model(&models.Account{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByRefreshToken 判断 refresh token 是否已被某账号使用
func (db *DB) ExistsByRefreshToken(ctx context.Context, token string) (bool, error) {
	var count int64
	err := db.gorm.WithContext(ctx).Model(&models.Account{}).
		Where("refresh_token = ?", token).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByRefreshToken 根据 refresh token 查找账号，不存在时返回 nil
func (db *DB) FindByRefreshToken(ctx context.Context, token string) (*models.Account, error) {
	var acc models.Account
	err := db.gorm.WithContext(ctx).Where("refresh_token = ?", token).First(&acc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetFirstMaster 获取主账号，不存在时返回 nil
func (db *DB) GetFirstMaster(ctx context.Context) (*models.Account, error) {
	var acc models.Account
	err := db.gorm.WithContext(ctx).Where("master = ?", true).Order("id ASC").First(&acc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
