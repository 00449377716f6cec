package account

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"atv-server/internal/alist"
	"atv-server/internal/logger"
	"atv-server/internal/models"
)

// tokenModified 令牌写入 AList 时的修改时间，固定用东八区偏移
func (s *Service) tokenModified() string {
	return time.Now().In(s.loc).Format("2006-01-02 15:04:05.999999999-07:00")
}

// pushAllTokens 把所有账号的令牌推送到 AList
func (s *Service) pushAllTokens(ctx context.Context) error {
	accounts, err := s.db.ListAccounts(ctx)
	if err != nil {
		return err
	}
	for _, acc := range accounts {
		if err := s.pushAccountTokens(ctx, acc); err != nil {
			return err
		}
	}
	return nil
}

// pushAccountTokens 把单个账号的四条令牌记录写入 x_tokens，空值跳过
func (s *Service) pushAccountTokens(ctx context.Context, acc *models.Account) error {
	writer, _, err := s.writer(ctx)
	if err != nil && err != alist.ErrStarting {
		return &SyncError{Op: "获取AList写入器", Err: err}
	}

	modified := s.tokenModified()
	records := []struct {
		key   string
		value string
	}{
		{fmt.Sprintf("RefreshToken-%d", acc.ID), acc.RefreshToken},
		{fmt.Sprintf("AccessToken-%d", acc.ID), acc.AccessToken},
		{fmt.Sprintf("RefreshTokenOpen-%d", acc.ID), acc.OpenToken},
		{fmt.Sprintf("AccessTokenOpen-%d", acc.ID), acc.OpenAccessToken},
	}

	for _, r := range records {
		if r.value == "" {
			// 空令牌不覆盖已有记录
			continue
		}
		token := &models.AListToken{
			Key:       r.key,
			Value:     r.value,
			AccountID: acc.ID,
			Modified:  modified,
		}
		if err := writer.UpsertToken(ctx, token); err != nil {
			return &SyncError{Op: "写入令牌 " + r.key, Err: err}
		}
	}
	logger.Debug("推送令牌完成: 账号 %d", acc.ID)
	return nil
}

// syncAllStorages 把所有账号的挂载状态同步到 AList
func (s *Service) syncAllStorages(ctx context.Context) error {
	accounts, err := s.db.ListAccounts(ctx)
	if err != nil {
		return err
	}
	for _, acc := range accounts {
		if err := s.syncStorage(ctx, acc); err != nil && err != alist.ErrStarting {
			logger.Warn("同步挂载失败: 账号 %d, 错误: %v", acc.ID, err)
		}
	}
	return nil
}

// shouldExpose 账号是否在 AList 中展示个人盘挂载
func (s *Service) shouldExpose(ctx context.Context, acc *models.Account) bool {
	if acc.ShowMyAli || acc.Master {
		return true
	}
	count, err := s.db.CountAccounts(ctx)
	if err != nil {
		return false
	}
	return count == 1
}

// syncStorage 推送或收回账号的资源盘和备份盘挂载
// AList 停止时直写库；启动中时先落库返回 ErrStarting；运行中走接口删旧、落库、再启用
func (s *Service) syncStorage(ctx context.Context, acc *models.Account) error {
	writer, status, werr := s.writer(ctx)
	if werr != nil && werr != alist.ErrStarting {
		return &SyncError{Op: "获取AList写入器", Err: werr}
	}

	storageID := StorageID(acc.ID)
	expose := s.shouldExpose(ctx, acc)

	if !expose {
		for _, sid := range []int{storageID, storageID + 1} {
			if err := writer.DeleteStorage(ctx, sid); err != nil {
				logger.Warn("收回挂载失败: %d, 错误: %v", sid, err)
			}
		}
		return werr
	}

	rootFolder := "root"
	if acc.Master {
		if folder := s.setting(ctx, models.SettingFolderID); folder != "" {
			rootFolder = folder
		}
	}
	resource := s.buildStorage(acc, storageID, "resource", rootFolder)
	backup := s.buildStorage(acc, storageID+1, "backup", "root")

	if status >= alist.StatusRunning {
		// 运行中先删旧挂载再落库，最后启用让 AList 重新加载
		for _, sid := range []int{storageID, storageID + 1} {
			if err := writer.DeleteStorage(ctx, sid); err != nil {
				logger.Warn("删除旧挂载失败: %d, 错误: %v", sid, err)
			}
		}
	}

	for _, storage := range []*models.AListStorage{resource, backup} {
		if err := writer.SaveStorage(ctx, storage); err != nil {
			return &SyncError{Op: "写入挂载", Err: err}
		}
	}

	if status >= alist.StatusRunning {
		for _, sid := range []int{storageID, storageID + 1} {
			if err := writer.EnableStorage(ctx, sid); err != nil {
				return &SyncError{Op: "启用挂载", Err: err}
			}
		}
	}

	logger.Info("同步挂载完成: 账号 %d, 槽位 %d/%d", acc.ID, storageID, storageID+1)
	return werr
}

// buildStorage 组装 AliyundriveOpen 挂载记录
func (s *Service) buildStorage(acc *models.Account, id int, driveType, rootFolder string) *models.AListStorage {
	suffix := ""
	if acc.ID > 1 {
		suffix = strconv.Itoa(acc.ID)
	}
	mountPath := mountPathResource + suffix
	if driveType == "backup" {
		mountPath = "/\U0001F4BE备份盘" + suffix
	}

	addition := models.AliyundriveOpenAddition{
		DriveType:      driveType,
		RefreshToken:   acc.OpenToken,
		RootFolderID:   rootFolder,
		OrderBy:        "name",
		OrderDirection: "ASC",
		OauthTokenURL:  s.cfg.Ali.OpenTokenURL,
		RemoveWay:      "recycle",
		InternalUpload: false,
		Concurrency:    acc.Concurrency,
		ChunkSize:      acc.ChunkSize,
		UseProxy:       acc.UseProxy,
	}
	if acc.Clean {
		addition.RemoveWay = "delete"
	}
	additionBytes, _ := json.Marshal(addition)

	return &models.AListStorage{
		ID:              id,
		MountPath:       mountPath,
		Order:           id,
		Driver:          "AliyundriveOpen",
		CacheExpiration: 30,
		Status:          "work",
		Addition:        string(additionBytes),
		Modified:        s.tokenModified(),
		// 落库时一律先禁用, AList 运行中由启用接口激活
		Disabled:       true,
		OrderBy:        "name",
		OrderDirection: "asc",
		WebdavPolicy:   "302_redirect",
	}
}
