package account

import (
	"context"
	"time"

	"atv-server/internal/logger"
	"atv-server/internal/models"
)

// Checkin 执行账号签到
// 没有旧版 refresh token 时静默跳过；同一个（上海时区）自然日只签一次，force 可强制重签
func (s *Service) Checkin(ctx context.Context, id int, force bool) (*models.CheckinResult, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.checkinAccount(ctx, acc, force)
}

func (s *Service) checkinAccount(ctx context.Context, acc *models.Account, force bool) (*models.CheckinResult, error) {
	if acc.RefreshToken == "" {
		return nil, nil
	}

	if !force && s.checkedInToday(acc, time.Now()) {
		return nil, &AlreadyCheckedInError{AccountID: acc.ID}
	}

	// 签到前先换一次令牌，保证 access token 有效
	resp, err := s.ali.RefreshToken(ctx, acc.RefreshToken)
	if err != nil {
		return nil, &ProviderError{Op: "刷新令牌", Err: err}
	}
	now := time.Now()
	acc.RefreshToken = resp.RefreshToken
	acc.RefreshTokenTime = &now
	acc.AccessToken = resp.AccessToken
	acc.AccessTokenTime = &now
	if resp.NickName != "" {
		acc.Nickname = resp.NickName
	}

	result, err := s.ali.SignIn(ctx, resp.AccessToken, resp.RefreshToken)
	if err != nil {
		// 令牌已经换过，签到失败也要落库
		if saveErr := s.db.SaveAccount(ctx, acc); saveErr != nil {
			logger.Error("保存账号失败: ID %d, 错误: %v", acc.ID, saveErr)
		}
		return nil, &ProviderError{Op: "签到", Err: err}
	}

	checkinTime := time.Now()
	acc.CheckinTime = &checkinTime
	acc.CheckinDays = result.SignInCount
	result.CheckinTime = &checkinTime
	if result.Nickname == "" {
		result.Nickname = acc.Nickname
	}

	if err := s.db.SaveAccount(ctx, acc); err != nil {
		return nil, err
	}

	// 镜像一份刷新时间到设置行，方便外部工具读取
	if err := s.db.SetSetting(ctx, models.SettingRefreshTime, now.Format(models.TimeFormat)); err != nil {
		logger.Warn("保存刷新时间失败: %v", err)
	}

	if err := s.pushAccountTokens(ctx, acc); err != nil {
		logger.Warn("推送令牌失败: ID %d, 错误: %v", acc.ID, err)
	}

	logger.Info("签到完成: 账号 %d, 昵称 %s, 累计 %d 天", acc.ID, acc.Nickname, acc.CheckinDays)
	return result, nil
}

// checkedInToday 判断是否已在当天签过到，按上海时区的自然日比较
func (s *Service) checkedInToday(acc *models.Account, now time.Time) bool {
	if acc.CheckinTime == nil {
		return false
	}
	last := acc.CheckinTime.In(s.loc)
	cur := now.In(s.loc)
	return last.Year() == cur.Year() && last.YearDay() == cur.YearDay()
}

// GetCheckinLogs 查询签到日历
// 返回当月已发放的奖励明细，每天两个奖励槽位，遇到未开始的条目停止
func (s *Service) GetCheckinLogs(ctx context.Context, id int) ([]models.CheckinLog, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.RefreshToken == "" {
		return nil, NewValidationError("账号没有阿里token")
	}

	resp, err := s.ali.RefreshToken(ctx, acc.RefreshToken)
	if err != nil {
		return nil, &ProviderError{Op: "刷新令牌", Err: err}
	}
	now := time.Now()
	acc.RefreshToken = resp.RefreshToken
	acc.RefreshTokenTime = &now
	acc.AccessToken = resp.AccessToken
	acc.AccessTokenTime = &now
	if err := s.db.SaveAccount(ctx, acc); err != nil {
		logger.Warn("保存账号失败: ID %d, 错误: %v", acc.ID, err)
	}

	result, err := s.ali.SignInList(ctx, resp.AccessToken)
	if err != nil {
		return nil, &ProviderError{Op: "获取签到日志", Err: err}
	}

	var list []models.CheckinLog
	for _, info := range result.SignInInfos {
		for _, reward := range info.Rewards {
			if reward.Status == models.RewardStatusNotStart {
				return list, nil
			}
			list = append(list, models.CheckinLog{
				Date:   info.Day.String(),
				Name:   reward.Name,
				Status: reward.Status,
			})
		}
	}
	return list, nil
}
