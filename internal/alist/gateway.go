package alist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"gorm.io/gorm"

	"atv-server/internal/config"
	"atv-server/internal/logger"
	"atv-server/internal/models"
)

// AList 运行状态
const (
	StatusStopped  = 0
	StatusStarting = 1
	StatusRunning  = 2
)

// ErrStarting AList 正在启动，改动已落库但无法立即生效
var ErrStarting = fmt.Errorf("AList 正在启动中")

// errUnauthorized 管理接口认证失败，缓存的 token 已过期
var errUnauthorized = errors.New("AList认证失败")

// Gateway 负责与本机 AList 实例通信，按运行状态选择直写数据库或调用管理接口
type Gateway struct {
	httpClient *http.Client
	cfg        *config.Config
	db         *gorm.DB

	mu       sync.Mutex
	status   int
	token    string
	username string
	password string
}

// NewGateway 创建 AList 网关，db 为 AList 自身的 data.db 连接
func NewGateway(cfg *config.Config, db *gorm.DB) *Gateway {
	return &Gateway{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		cfg: cfg,
		db:  db,
	}
}

// EnsureSchema 建出直写路径依赖的表，AList 首次启动前可能还没建库
func (g *Gateway) EnsureSchema() error {
	return g.db.AutoMigrate(
		&models.AListToken{},
		&models.AListStorage{},
		&models.AListSettingItem{},
		&models.AListUser{},
	)
}

// baseURL 本机 AList 服务地址
func (g *Gateway) baseURL() string {
	return fmt.Sprintf("http://localhost:%d", g.cfg.AList.Port)
}

// CheckStatus 返回 AList 运行状态
// 能 ping 通即视为运行中，否则沿用进程管理器上报的标记
func (g *Gateway) CheckStatus(ctx context.Context) int {
	req, err := http.NewRequestWithContext(ctx, "GET", g.baseURL()+"/ping", nil)
	if err == nil {
		resp, err := g.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return StatusRunning
			}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status >= StatusRunning {
		// 标记说在运行但 ping 不通，视为已停止
		return StatusStopped
	}
	return g.status
}

// SetStatus 由进程管理器上报启动阶段标记
func (g *Gateway) SetStatus(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
	logger.Info("AList状态更新: %d", status)
}

// Login 用管理账号登录并缓存 token
func (g *Gateway) Login(ctx context.Context, username, password string) error {
	body := map[string]string{
		"username": username,
		"password": password,
	}
	var resp struct {
		Code int `json:"code"`
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := g.post(ctx, "/api/auth/login", "", body, &resp); err != nil {
		return fmt.Errorf("AList登录失败: %w", err)
	}
	if resp.Code != 200 || resp.Data.Token == "" {
		return fmt.Errorf("AList登录失败: code=%d", resp.Code)
	}

	g.mu.Lock()
	g.token = resp.Data.Token
	g.username = username
	g.password = password
	g.mu.Unlock()
	logger.Info("AList登录成功: %s", username)
	return nil
}

// invalidateToken 清掉缓存的登录 token
func (g *Gateway) invalidateToken() {
	g.mu.Lock()
	g.token = ""
	g.mu.Unlock()
}

// relogin 用上次登录的凭据重新登录
func (g *Gateway) relogin(ctx context.Context) error {
	g.mu.Lock()
	username, password := g.username, g.password
	g.mu.Unlock()
	if username == "" {
		return fmt.Errorf("没有可用的AList登录凭据")
	}
	return g.Login(ctx, username, password)
}

// EnsureLogin 没有缓存 token 时才登录
func (g *Gateway) EnsureLogin(ctx context.Context, username, password string) error {
	if g.cachedToken() != "" {
		return nil
	}
	return g.Login(ctx, username, password)
}

// cachedToken 返回缓存的登录 token
func (g *Gateway) cachedToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// post 调用 AList 接口
func (g *Gateway) post(ctx context.Context, path, token string, payload interface{}, out interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL()+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		logger.Error("AList接口请求失败: %s, 错误: %v", path, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		logger.Error("AList接口请求失败: %s, 状态码: %d, 响应: %s", path, resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("HTTP %d: %w", resp.StatusCode, errUnauthorized)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}

// apiResult AList 接口通用响应
type apiResult struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// callAdmin 带缓存 token 调用管理接口，校验业务码
// 缓存的 token 会过期, 认证失败时重新登录并重试一次
func (g *Gateway) callAdmin(ctx context.Context, path string, payload interface{}) error {
	authFailed, err := g.doAdmin(ctx, path, payload)
	if !authFailed {
		return err
	}

	g.invalidateToken()
	if lerr := g.relogin(ctx); lerr != nil {
		logger.Warn("AList重新登录失败: %v", lerr)
		return err
	}
	_, err = g.doAdmin(ctx, path, payload)
	return err
}

// doAdmin 执行一次管理接口调用，返回是否为认证失败
func (g *Gateway) doAdmin(ctx context.Context, path string, payload interface{}) (bool, error) {
	var resp apiResult
	if err := g.post(ctx, path, g.cachedToken(), payload, &resp); err != nil {
		return errors.Is(err, errUnauthorized), err
	}
	if resp.Code == 401 {
		return true, fmt.Errorf("AList接口认证失败: %s", path)
	}
	if resp.Code != 200 {
		return false, fmt.Errorf("AList接口返回错误: %s, code=%d, message=%s", path, resp.Code, resp.Message)
	}
	return false, nil
}

// GetUser 按用户名查 AList 用户，不存在返回 nil
func (g *Gateway) GetUser(username string) (*models.AListUser, error) {
	var user models.AListUser
	err := g.db.Where("username = ?", username).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveUser 直写 AList 用户表
func (g *Gateway) SaveUser(user *models.AListUser) error {
	return g.db.Save(user).Error
}
