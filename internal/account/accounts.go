package account

import (
	"context"
	"strconv"
	"time"

	"atv-server/internal/alist"
	"atv-server/internal/logger"
	"atv-server/internal/models"
)

// List 列出全部账号
func (s *Service) List(ctx context.Context) ([]*models.Account, error) {
	return s.db.ListAccounts(ctx)
}

// Get 按 ID 查账号
func (s *Service) Get(ctx context.Context, id int) (*models.Account, error) {
	acc, err := s.db.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, &NotFoundError{Resource: "账号", ID: id}
	}
	return acc, nil
}

// validateDto 校验令牌格式，两类令牌至少要有一个
func (s *Service) validateDto(ctx context.Context, id int, dto *models.AccountDto) error {
	if dto.RefreshToken == "" && dto.OpenToken == "" && dto.AccessToken == "" && dto.OpenAccessToken == "" {
		return NewValidationError("至少需要一个令牌")
	}
	if len(dto.RefreshToken) > 128 {
		return NewValidationError("阿里token长度不能超过128")
	}
	if dto.OpenToken != "" && len(dto.OpenToken) < 128 {
		return NewValidationError("开放token长度不能少于128")
	}

	if dto.RefreshToken != "" {
		existing, err := s.db.FindByRefreshToken(ctx, dto.RefreshToken)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != id {
			return NewValidationError("阿里token已存在")
		}
	}
	return nil
}

// Create 创建账号
// 第一个账号自动成为主账号；创建后尽力签到并推送挂载，失败只记日志
func (s *Service) Create(ctx context.Context, dto *models.AccountDto) (*models.Account, error) {
	if err := s.validateDto(ctx, 0, dto); err != nil {
		return nil, err
	}

	count, err := s.db.CountAccounts(ctx)
	if err != nil {
		return nil, err
	}

	acc := &models.Account{
		RefreshToken:        dto.RefreshToken,
		RefreshTokenTime:    dto.RefreshTokenTime,
		AccessToken:         dto.AccessToken,
		AccessTokenTime:     dto.AccessTokenTime,
		OpenToken:           dto.OpenToken,
		OpenTokenTime:       dto.OpenTokenTime,
		OpenAccessToken:     dto.OpenAccessToken,
		OpenAccessTokenTime: dto.OpenAccessTokenTime,
		AutoCheckin:         dto.AutoCheckin,
		ShowMyAli:           dto.ShowMyAli,
		Master:              dto.Master,
		UseProxy:            dto.UseProxy,
		Clean:               dto.Clean,
		Concurrency:         dto.Concurrency,
		ChunkSize:           dto.ChunkSize,
	}
	if acc.Concurrency == 0 {
		acc.Concurrency = 4
	}
	if acc.ChunkSize == 0 {
		acc.ChunkSize = 256
	}
	if count == 0 {
		acc.Master = true
	}
	if acc.Master {
		acc.ShowMyAli = true
	}

	if acc.Master && count > 0 {
		if err := s.demoteOtherMasters(ctx, 0); err != nil {
			return nil, err
		}
	}

	if err := s.db.SaveAccount(ctx, acc); err != nil {
		return nil, err
	}
	logger.Info("创建账号: ID %d, 主账号: %v", acc.ID, acc.Master)

	if acc.RefreshToken != "" {
		if _, err := s.Checkin(ctx, acc.ID, false); err != nil {
			logger.Warn("创建后签到失败: ID %d, 错误: %v", acc.ID, err)
		}
	}

	if count == 0 || acc.Master {
		if err := s.pushAliAccountID(ctx); err != nil {
			logger.Warn("推送主账号ID失败: %v", err)
		}
		if err := s.pushAllTokens(ctx); err != nil {
			logger.Warn("推送令牌失败: %v", err)
		}
	} else {
		if err := s.pushAccountTokens(ctx, acc); err != nil {
			logger.Warn("推送令牌失败: ID %d, 错误: %v", acc.ID, err)
		}
	}

	if err := s.syncStorage(ctx, acc); err != nil {
		if err == alist.ErrStarting {
			return acc, err
		}
		logger.Warn("推送挂载失败: ID %d, 错误: %v", acc.ID, err)
	}
	return acc, nil
}

// Update 更新账号，按变化项分别触发令牌推送、主账号传播和挂载同步
func (s *Service) Update(ctx context.Context, id int, dto *models.AccountDto) (*models.Account, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateDto(ctx, id, dto); err != nil {
		return nil, err
	}

	tokenChanged := acc.RefreshToken != dto.RefreshToken ||
		acc.OpenToken != dto.OpenToken ||
		acc.AccessToken != dto.AccessToken
	masterChanged := acc.Master != dto.Master
	mountChanged := acc.ShowMyAli != dto.ShowMyAli ||
		acc.UseProxy != dto.UseProxy ||
		acc.Concurrency != dto.Concurrency ||
		acc.ChunkSize != dto.ChunkSize

	acc.RefreshToken = dto.RefreshToken
	acc.AccessToken = dto.AccessToken
	acc.OpenToken = dto.OpenToken
	acc.OpenAccessToken = dto.OpenAccessToken
	acc.AutoCheckin = dto.AutoCheckin
	acc.ShowMyAli = dto.ShowMyAli
	acc.Master = dto.Master
	acc.UseProxy = dto.UseProxy
	acc.Clean = dto.Clean
	acc.Concurrency = dto.Concurrency
	acc.ChunkSize = dto.ChunkSize
	if dto.RefreshTokenTime != nil {
		acc.RefreshTokenTime = dto.RefreshTokenTime
	}
	if dto.OpenTokenTime != nil {
		acc.OpenTokenTime = dto.OpenTokenTime
	}
	if acc.Master {
		acc.ShowMyAli = true
	}

	if tokenChanged && acc.Master {
		// 主账号换令牌后旧的开放访问令牌随之失效
		acc.OpenAccessToken = ""
		acc.OpenAccessTokenTime = nil
	}

	if masterChanged && acc.Master {
		if err := s.demoteOtherMasters(ctx, acc.ID); err != nil {
			return nil, err
		}
	}

	if err := s.db.SaveAccount(ctx, acc); err != nil {
		return nil, err
	}
	logger.Info("更新账号: ID %d, 令牌变化: %v, 主账号变化: %v", acc.ID, tokenChanged, masterChanged)

	if masterChanged && acc.Master {
		if err := s.pushAliAccountID(ctx); err != nil {
			logger.Warn("推送主账号ID失败: %v", err)
		}
	}
	if tokenChanged || (masterChanged && acc.Master) {
		if err := s.pushAllTokens(ctx); err != nil {
			logger.Warn("推送令牌失败: %v", err)
		}
	}

	if tokenChanged || masterChanged || mountChanged {
		if err := s.syncStorage(ctx, acc); err != nil {
			if err == alist.ErrStarting {
				return acc, err
			}
			logger.Warn("推送挂载失败: ID %d, 错误: %v", acc.ID, err)
		}
	}
	return acc, nil
}

// UpdateToken 按令牌族部分更新账号令牌，跳过空值
func (s *Service) UpdateToken(ctx context.Context, id int, dto *models.AccountDto) (*models.Account, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	changed := false
	if dto.RefreshToken != "" && dto.RefreshToken != acc.RefreshToken {
		if len(dto.RefreshToken) > 128 {
			return nil, NewValidationError("阿里token长度不能超过128")
		}
		existing, err := s.db.FindByRefreshToken(ctx, dto.RefreshToken)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, NewValidationError("阿里token已存在")
		}
		acc.RefreshToken = dto.RefreshToken
		acc.RefreshTokenTime = &now
		changed = true
	}
	if dto.AccessToken != "" && dto.AccessToken != acc.AccessToken {
		acc.AccessToken = dto.AccessToken
		acc.AccessTokenTime = &now
		changed = true
	}
	if dto.OpenToken != "" && dto.OpenToken != acc.OpenToken {
		if len(dto.OpenToken) < 128 {
			return nil, NewValidationError("开放token长度不能少于128")
		}
		acc.OpenToken = dto.OpenToken
		acc.OpenTokenTime = &now
		changed = true
	}
	if dto.OpenAccessToken != "" && dto.OpenAccessToken != acc.OpenAccessToken {
		acc.OpenAccessToken = dto.OpenAccessToken
		acc.OpenAccessTokenTime = &now
		changed = true
	}
	if !changed {
		return acc, nil
	}

	if err := s.db.SaveAccount(ctx, acc); err != nil {
		return nil, err
	}
	if err := s.pushAccountTokens(ctx, acc); err != nil {
		logger.Warn("推送令牌失败: ID %d, 错误: %v", acc.ID, err)
	}
	return acc, nil
}

// Delete 删除账号并收回两个挂载槽位
// AList 启动中时拒绝删除，等它起来再删避免挂载残留
func (s *Service) Delete(ctx context.Context, id int) error {
	acc, err := s.db.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if acc == nil {
		return nil
	}

	writer, _, err := s.writer(ctx)
	if err == alist.ErrStarting {
		return err
	}

	if err := s.db.DeleteAccount(ctx, id); err != nil {
		return err
	}
	logger.Info("删除账号: ID %d", id)

	storageID := StorageID(id)
	for _, sid := range []int{storageID, storageID + 1} {
		if err := writer.DeleteStorage(ctx, sid); err != nil {
			logger.Warn("收回挂载失败: %d, 错误: %v", sid, err)
		}
	}
	return nil
}

// demoteOtherMasters 把其它账号的主账号标记清掉，保证全局只有一个主账号
func (s *Service) demoteOtherMasters(ctx context.Context, keepID int) error {
	accounts, err := s.db.ListAccounts(ctx)
	if err != nil {
		return err
	}
	var changed []*models.Account
	for _, other := range accounts {
		if other.ID != keepID && other.Master {
			other.Master = false
			changed = append(changed, other)
		}
	}
	return s.db.SaveAccounts(ctx, changed)
}

// pushAliAccountID 记录主账号 ID，并把主账号的挂载 ID 写入 AList 设置项
func (s *Service) pushAliAccountID(ctx context.Context) error {
	master, err := s.db.GetFirstMaster(ctx)
	if err != nil {
		return err
	}
	if master == nil {
		return nil
	}
	if err := s.db.SetSetting(ctx, models.SettingAliAccountID, strconv.Itoa(master.ID)); err != nil {
		return err
	}

	writer, _, werr := s.writer(ctx)
	if werr != nil && werr != alist.ErrStarting {
		return nil
	}
	item := &models.AListSettingItem{Key: "ali_account_id", Value: strconv.Itoa(StorageID(master.ID)), Type: "number"}
	if err := writer.SetSetting(ctx, item); err != nil {
		logger.Warn("写入AList主账号设置失败: %v", err)
	}
	return nil
}
