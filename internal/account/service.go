package account

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"atv-server/internal/ali"
	"atv-server/internal/alist"
	"atv-server/internal/config"
	"atv-server/internal/database"
	"atv-server/internal/index"
	"atv-server/internal/logger"
	"atv-server/internal/models"
	"atv-server/internal/util"
)

// 挂载在 x_storages 表中的起始 ID，每个账号占两个槽位
const baseStorageID = 4600

// 资源盘挂载路径前缀
const mountPathResource = "/\U0001F680我的阿里云盘"

// Service 账号生命周期引擎
// 负责账号增删改查、令牌刷新、每日签到、AList 同步和定时任务
type Service struct {
	db      *database.DB
	ali     *ali.Client
	gateway *alist.Gateway
	index   *index.Client
	cfg     *config.Config
	loc     *time.Location

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

// New 创建账号服务
func New(db *database.DB, aliClient *ali.Client, gateway *alist.Gateway, indexClient *index.Client, cfg *config.Config) *Service {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	return &Service{
		db:      db,
		ali:     aliClient,
		gateway: gateway,
		index:   indexClient,
		cfg:     cfg,
		loc:     loc,
	}
}

// StorageID 账号对应的资源盘挂载 ID，备份盘为该值加一
func StorageID(accountID int) int {
	return baseStorageID + (accountID-1)*2
}

// Setup 启动时执行一次性迁移、引导导入和全量同步，最后拉起定时任务
func (s *Service) Setup(ctx context.Context) error {
	if err := s.runMigrations(ctx); err != nil {
		return err
	}

	if err := s.bootstrap(ctx); err != nil {
		logger.Error("引导导入失败: %v", err)
	}

	s.importGuestLogin(ctx)

	if err := s.ensureAListUser(ctx); err != nil {
		logger.Warn("安装AList管理用户失败: %v", err)
	}

	if err := s.pushAliAccountID(ctx); err != nil {
		logger.Warn("推送主账号ID失败: %v", err)
	}
	if err := s.pushAllTokens(ctx); err != nil {
		logger.Warn("推送令牌失败: %v", err)
	}
	if err := s.syncAllStorages(ctx); err != nil {
		logger.Warn("同步挂载失败: %v", err)
	}

	s.startScheduler(ctx)
	return nil
}

// Shutdown 停掉定时任务
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

// runMigrations 执行一次性数据迁移，每项由 settings 标记行保证只跑一次
func (s *Service) runMigrations(ctx context.Context) error {
	migrations := []struct {
		marker string
		run    func(context.Context) error
	}{
		{models.SettingAliSecret, s.seedAliSecret},
		{"fix_ali_concurrency", s.fixConcurrency},
		{"fix_ali_chunk_size", s.fixChunkSize},
		{"security_hardening", s.hardenSecurity},
	}

	for _, m := range migrations {
		has, err := s.db.HasSetting(ctx, m.marker)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		logger.Info("执行迁移: %s", m.marker)
		if err := m.run(ctx); err != nil {
			logger.Error("迁移失败: %s, 错误: %v", m.marker, err)
			return err
		}
	}
	return nil
}

// seedAliSecret 生成签名访问密钥
func (s *Service) seedAliSecret(ctx context.Context) error {
	return s.db.SetSetting(ctx, models.SettingAliSecret, util.Secret())
}

// fixConcurrency 给历史账号补默认并发数
func (s *Service) fixConcurrency(ctx context.Context) error {
	accounts, err := s.db.ListAccounts(ctx)
	if err != nil {
		return err
	}
	var changed []*models.Account
	for _, acc := range accounts {
		if acc.Concurrency == 0 {
			acc.Concurrency = 4
			changed = append(changed, acc)
		}
	}
	if err := s.db.SaveAccounts(ctx, changed); err != nil {
		return err
	}
	return s.db.SetSetting(ctx, "fix_ali_concurrency", "4")
}

// fixChunkSize 给历史账号补默认分片大小
func (s *Service) fixChunkSize(ctx context.Context) error {
	accounts, err := s.db.ListAccounts(ctx)
	if err != nil {
		return err
	}
	var changed []*models.Account
	for _, acc := range accounts {
		if acc.ChunkSize == 0 {
			acc.ChunkSize = 256
			changed = append(changed, acc)
		}
	}
	if err := s.db.SaveAccounts(ctx, changed); err != nil {
		return err
	}
	return s.db.SetSetting(ctx, "fix_ali_chunk_size", "256")
}

// hardenSecurity 重置 AList 游客密码为随机串并开启全站签名，避免默认口令和裸链接暴露
func (s *Service) hardenSecurity(ctx context.Context) error {
	password := util.Generate(12)
	guest, err := s.gateway.GetUser("guest")
	if err == nil && guest != nil {
		guest.Password = password
		if err := s.gateway.SaveUser(guest); err != nil {
			logger.Warn("重置游客密码失败: %v", err)
		}
	}
	if err := s.db.SetSetting(ctx, models.SettingAListPassword, password); err != nil {
		return err
	}

	if w, _, err := s.writer(ctx); err == nil {
		item := &models.AListSettingItem{Key: "sign_all", Value: "true", Type: "bool", Group: 4}
		if err := w.SetSetting(ctx, item); err != nil {
			logger.Warn("开启全站签名失败: %v", err)
		}
	}

	return s.db.SetSetting(ctx, "security_hardening", "true")
}

// bootstrap 没有任何账号时从设置行或引导文件导入第一个账号
func (s *Service) bootstrap(ctx context.Context) error {
	count, err := s.db.CountAccounts(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	acc := &models.Account{
		Master:      true,
		ShowMyAli:   s.settingBool(ctx, models.SettingShowMyAli),
		AutoCheckin: s.settingBool(ctx, models.SettingAutoCheckin),
		Concurrency: 4,
		ChunkSize:   256,
	}

	acc.RefreshToken = s.settingOrFile(ctx, models.SettingRefreshToken, "mytoken.txt")
	acc.OpenToken = s.settingOrFile(ctx, models.SettingOpenToken, "myopentoken.txt")
	if acc.RefreshToken == "" && acc.OpenToken == "" {
		logger.Info("没有可导入的引导令牌")
		return nil
	}

	acc.RefreshTokenTime = s.settingTime(ctx, models.SettingRefreshTime)
	acc.OpenTokenTime = s.settingTime(ctx, models.SettingOpenTokenTime)
	acc.CheckinTime = s.settingTime(ctx, models.SettingCheckinTime)
	if days, err := strconv.Atoi(s.setting(ctx, models.SettingCheckinDays)); err == nil {
		acc.CheckinDays = days
	}

	if err := s.db.SaveAccount(ctx, acc); err != nil {
		return err
	}
	logger.Info("引导导入账号完成: ID %d", acc.ID)

	// 主账号资源挂载的根目录可通过引导文件指定
	if folder := s.readBootstrapFile("myfolder.txt"); folder != "" {
		if err := s.db.SetSetting(ctx, models.SettingFolderID, folder); err != nil {
			logger.Warn("保存根目录设置失败: %v", err)
		}
	}

	// 导入后清掉旧的单账号设置行，后续以账号表为准
	for _, key := range []string{
		models.SettingRefreshToken, models.SettingOpenToken,
		models.SettingRefreshTime, models.SettingOpenTokenTime,
		models.SettingCheckinTime, models.SettingCheckinDays,
	} {
		if err := s.db.DeleteSetting(ctx, key); err != nil {
			logger.Warn("清理设置项失败: %s, 错误: %v", key, err)
		}
	}
	return nil
}

// importGuestLogin 从引导文件导入 AList 游客登录配置
func (s *Service) importGuestLogin(ctx context.Context) {
	if password := s.readBootstrapFile("guestpass.txt"); password != "" {
		if err := s.db.SetSetting(ctx, models.SettingAListPassword, password); err == nil {
			if guest, err := s.gateway.GetUser("guest"); err == nil && guest != nil {
				guest.Password = password
				if err := s.gateway.SaveUser(guest); err != nil {
					logger.Warn("更新游客密码失败: %v", err)
				}
			}
		}
	}
	if login := s.readBootstrapFile("guestlogin.txt"); login != "" {
		enabled := login == "true" || login == "1"
		if err := s.db.SetSetting(ctx, models.SettingAListLogin, strconv.FormatBool(enabled)); err != nil {
			logger.Warn("保存游客登录配置失败: %v", err)
		}
	}
}

// ensureAListUser 在 AList 中安装 atv 管理用户，密码随机生成并保存到设置项
func (s *Service) ensureAListUser(ctx context.Context) error {
	password, err := s.db.GetSetting(ctx, models.SettingAtvPassword)
	if err != nil {
		return err
	}
	if password == "" {
		password = util.Generate(12)
		if err := s.db.SetSetting(ctx, models.SettingAtvPassword, password); err != nil {
			return err
		}
	}

	user, err := s.gateway.GetUser("atv")
	if err != nil {
		return err
	}
	if user == nil {
		user = &models.AListUser{
			ID:       4,
			Username: "atv",
			BasePath: "/",
			Role:     2,
		}
	}
	user.Password = password
	user.Disabled = false
	return s.gateway.SaveUser(user)
}

// writer 取一个 AList 写入器，AList 运行中时先确保已用 atv 用户登录管理接口
func (s *Service) writer(ctx context.Context) (alist.Writer, int, error) {
	w, status, err := s.gateway.Writer(ctx)
	if status >= alist.StatusRunning {
		if password, derr := s.db.GetSetting(ctx, models.SettingAtvPassword); derr == nil && password != "" {
			if lerr := s.gateway.EnsureLogin(ctx, "atv", password); lerr != nil {
				logger.Warn("AList管理接口登录失败: %v", lerr)
			}
		}
	}
	return w, status, err
}

// AListLogin 返回 AList 游客登录配置
func (s *Service) AListLogin(ctx context.Context) (*models.AListLogin, error) {
	username, err := s.db.GetSetting(ctx, models.SettingAListUsername)
	if err != nil {
		return nil, err
	}
	if username == "" {
		username = "guest"
	}
	password, err := s.db.GetSetting(ctx, models.SettingAListPassword)
	if err != nil {
		return nil, err
	}
	enabled, err := s.db.GetSetting(ctx, models.SettingAListLogin)
	if err != nil {
		return nil, err
	}
	return &models.AListLogin{
		Username: username,
		Password: password,
		Enabled:  enabled == "true",
	}, nil
}

// UpdateAListLogin 更新 AList 游客登录配置并同步到 AList 用户表
func (s *Service) UpdateAListLogin(ctx context.Context, login *models.AListLogin) error {
	if login.Username == "" {
		login.Username = "guest"
	}
	if login.Enabled && login.Password == "" {
		return NewValidationError("密码不能为空")
	}

	if err := s.db.SetSetting(ctx, models.SettingAListUsername, login.Username); err != nil {
		return err
	}
	if err := s.db.SetSetting(ctx, models.SettingAListPassword, login.Password); err != nil {
		return err
	}
	if err := s.db.SetSetting(ctx, models.SettingAListLogin, strconv.FormatBool(login.Enabled)); err != nil {
		return err
	}

	guest, err := s.gateway.GetUser(login.Username)
	if err != nil {
		return err
	}
	if guest != nil {
		guest.Password = login.Password
		guest.Disabled = !login.Enabled
		if err := s.gateway.SaveUser(guest); err != nil {
			return &SyncError{Op: "更新AList用户", Err: err}
		}
	}
	return nil
}

// ResetAdminPassword 重置本服务的管理密码
func (s *Service) ResetAdminPassword(ctx context.Context) (string, error) {
	password := util.Generate(12)
	if err := s.db.SetSetting(ctx, models.SettingAdminPassword, password); err != nil {
		return "", err
	}
	s.cfg.AdminPassword = password
	logger.Info("管理密码已重置")
	return password, nil
}

// GetAliRefreshToken 用签名密钥换取主账号令牌，密钥不对返回 nil
func (s *Service) GetAliRefreshToken(ctx context.Context, secret string) (*models.Account, error) {
	stored, err := s.db.GetSetting(ctx, models.SettingAliSecret)
	if err != nil {
		return nil, err
	}
	if stored == "" || secret != stored {
		return nil, nil
	}
	return s.db.GetFirstMaster(ctx)
}

// setting 读取设置项，出错当空处理
func (s *Service) setting(ctx context.Context, key string) string {
	value, err := s.db.GetSetting(ctx, key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func (s *Service) settingBool(ctx context.Context, key string) bool {
	return s.setting(ctx, key) == "true"
}

func (s *Service) settingTime(ctx context.Context, key string) *time.Time {
	value := s.setting(ctx, key)
	if value == "" {
		return nil
	}
	t, err := time.Parse(models.TimeFormat, value)
	if err != nil {
		return nil
	}
	return &t
}

// settingOrFile 优先取设置行，为空时读取引导文件
func (s *Service) settingOrFile(ctx context.Context, key, filename string) string {
	if value := s.setting(ctx, key); value != "" {
		return value
	}
	return s.readBootstrapFile(filename)
}

// readBootstrapFile 读取数据目录下的引导文件，取第一行
func (s *Service) readBootstrapFile(filename string) string {
	path := filepath.Join(s.cfg.DataDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	content := strings.TrimSpace(string(data))
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		content = strings.TrimSpace(content[:idx])
	}
	return content
}
