package account

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"atv-server/internal/ali"
	"atv-server/internal/logger"
	"atv-server/internal/models"
)

// SweepResult 一轮定时任务的账号处理报告
type SweepResult struct {
	AccountID  int
	Nickname   string
	Refreshed  bool
	CheckinOK  bool
	CheckinTry bool
	Errors     []string
}

// ScheduleTime 当前的每日任务时间，默认 09:00
func (s *Service) ScheduleTime(ctx context.Context) time.Time {
	value := s.setting(ctx, models.SettingScheduleTime)
	if value != "" {
		if t, err := time.Parse(models.TimeFormat, value); err == nil {
			return t.In(s.loc)
		}
	}
	now := time.Now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, s.loc)
}

// UpdateScheduleTime 更新每日任务时间并原子替换 cron 条目
func (s *Service) UpdateScheduleTime(ctx context.Context, t time.Time) error {
	if err := s.db.SetSetting(ctx, models.SettingScheduleTime, t.UTC().Format(models.TimeFormat)); err != nil {
		return err
	}

	local := t.In(s.loc)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	s.cron.Remove(s.entryID)
	entryID, err := s.cron.AddFunc(cronSpec(local), s.runScheduleTask)
	if err != nil {
		return err
	}
	s.entryID = entryID
	logger.Info("定时任务时间更新为 %02d:%02d", local.Hour(), local.Minute())
	return nil
}

// cronSpec 把时刻转成每日 cron 表达式
func cronSpec(t time.Time) string {
	return fmt.Sprintf("%d %d %d * * *", t.Second(), t.Minute(), t.Hour())
}

// startScheduler 拉起每日任务；今天的任务时间已过则补签一次
func (s *Service) startScheduler(ctx context.Context) {
	scheduleTime := s.ScheduleTime(ctx)

	s.mu.Lock()
	// 上一轮没跑完时跳过本轮, 不允许并发扫描
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	entryID, err := s.cron.AddFunc(cronSpec(scheduleTime), s.runScheduleTask)
	if err != nil {
		s.mu.Unlock()
		logger.Error("注册定时任务失败: %v", err)
		return
	}
	s.entryID = entryID
	s.cron.Start()
	s.mu.Unlock()
	logger.Info("定时任务已注册: 每天 %02d:%02d", scheduleTime.Hour(), scheduleTime.Minute())

	now := time.Now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), scheduleTime.Hour(), scheduleTime.Minute(), scheduleTime.Second(), 0, s.loc)
	if now.After(today) {
		logger.Info("今日任务时间已过, 执行补签")
		s.AutoCheckin(ctx)
	}
}

// runScheduleTask cron 回调入口
func (s *Service) runScheduleTask() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	s.HandleScheduleTask(ctx)
}

// HandleScheduleTask 每日任务：逐账号刷新令牌并按需签到，最后查一次远端索引版本
func (s *Service) HandleScheduleTask(ctx context.Context) []SweepResult {
	logger.Info("开始执行每日任务")
	accounts, err := s.db.ListAccounts(ctx)
	if err != nil {
		logger.Error("每日任务失败: 无法列出账号: %v", err)
		return nil
	}

	results := make([]SweepResult, 0, len(accounts))
	for _, acc := range accounts {
		result := SweepResult{AccountID: acc.ID, Nickname: acc.Nickname}

		refreshed, err := s.refreshAccountTokens(ctx, acc)
		result.Refreshed = refreshed
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		}

		if acc.AutoCheckin {
			result.CheckinTry = true
			if _, err := s.checkinAccount(ctx, acc, false); err != nil {
				if _, ok := err.(*AlreadyCheckedInError); ok {
					result.CheckinOK = true
				} else {
					result.Errors = append(result.Errors, err.Error())
				}
			} else {
				result.CheckinOK = true
			}
		}
		results = append(results, result)
	}

	for _, r := range results {
		if len(r.Errors) > 0 {
			logger.Warn("每日任务: 账号 %d(%s) 刷新=%v 签到=%v 错误=%v", r.AccountID, r.Nickname, r.Refreshed, r.CheckinOK, r.Errors)
		} else {
			logger.Info("每日任务: 账号 %d(%s) 刷新=%v 签到=%v", r.AccountID, r.Nickname, r.Refreshed, r.CheckinOK)
		}
	}

	go func() {
		vctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.index.GetRemoteVersion(vctx)
	}()

	logger.Info("每日任务执行完成: %d 个账号", len(results))
	return results
}

// AutoCheckin 对开启自动签到的账号执行一次普通签到
func (s *Service) AutoCheckin(ctx context.Context) {
	accounts, err := s.db.ListAccounts(ctx)
	if err != nil {
		logger.Error("自动签到失败: 无法列出账号: %v", err)
		return
	}
	for _, acc := range accounts {
		if !acc.AutoCheckin {
			continue
		}
		if _, err := s.checkinAccount(ctx, acc, false); err != nil {
			if _, ok := err.(*AlreadyCheckedInError); ok {
				continue
			}
			logger.Warn("自动签到失败: 账号 %d, 错误: %v", acc.ID, err)
		}
	}
}

// RefreshTokens 刷新所有账号的到期令牌
func (s *Service) RefreshTokens(ctx context.Context) {
	accounts, err := s.db.ListAccounts(ctx)
	if err != nil {
		logger.Error("刷新令牌失败: 无法列出账号: %v", err)
		return
	}
	for _, acc := range accounts {
		if _, err := s.refreshAccountTokens(ctx, acc); err != nil {
			logger.Warn("刷新令牌失败: 账号 %d, 错误: %v", acc.ID, err)
		}
	}
}

// refreshAccountTokens 刷新单个账号的两套令牌，任一变化则落库并推送
// 两套令牌独立刷新，一套失败不影响另一套
func (s *Service) refreshAccountTokens(ctx context.Context, acc *models.Account) (bool, error) {
	changed := false
	var firstErr error

	if ali.ShouldRefreshOpenToken(acc.OpenToken, acc.OpenTokenTime, time.Now()) {
		resp, err := s.ali.RefreshOpenToken(ctx, acc.OpenToken)
		if err != nil {
			firstErr = &ProviderError{Op: "刷新开放令牌", Err: err}
		} else {
			now := time.Now()
			acc.OpenToken = resp.RefreshToken
			acc.OpenTokenTime = &now
			acc.OpenAccessToken = resp.AccessToken
			acc.OpenAccessTokenTime = &now
			changed = true
		}
	}

	if acc.RefreshToken != "" && ali.NeedsRefreshToken(acc.RefreshTokenTime, time.Now()) {
		resp, err := s.ali.RefreshToken(ctx, acc.RefreshToken)
		if err != nil {
			if firstErr == nil {
				firstErr = &ProviderError{Op: "刷新令牌", Err: err}
			}
		} else {
			now := time.Now()
			acc.RefreshToken = resp.RefreshToken
			acc.RefreshTokenTime = &now
			acc.AccessToken = resp.AccessToken
			acc.AccessTokenTime = &now
			if resp.NickName != "" {
				acc.Nickname = resp.NickName
			}
			changed = true
		}
	}

	if changed {
		if err := s.db.SaveAccount(ctx, acc); err != nil {
			return changed, err
		}
		if err := s.pushAccountTokens(ctx, acc); err != nil {
			logger.Warn("推送令牌失败: ID %d, 错误: %v", acc.ID, err)
		}
	}
	return changed, firstErr
}
