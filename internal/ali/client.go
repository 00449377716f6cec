package ali

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"atv-server/internal/config"
	"atv-server/internal/logger"
	"atv-server/internal/models"
)

// SettingSource 提供运行期设置项（开放平台 token 地址、client id/secret）
type SettingSource interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// Client 阿里云盘客户端，负责两类令牌交换和签到接口
type Client struct {
	httpClient *http.Client
	cfg        *config.Config
	settings   SettingSource
}

// NewClient 创建阿里云盘客户端
func NewClient(cfg *config.Config, settings SettingSource) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cfg:      cfg,
		settings: settings,
	}
}

// TokenResponse 令牌交换响应
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	NickName     string `json:"nick_name"`
}

// RefreshToken 用旧版 refresh token 换取新的 access/refresh token 对
func (c *Client) RefreshToken(ctx context.Context, token string) (*TokenResponse, error) {
	body := map[string]string{
		"refresh_token": token,
		"grant_type":    "refresh_token",
	}
	headers := map[string]string{
		"User-Agent": c.cfg.Ali.UserAgent,
		"Referer":    c.cfg.Ali.Referer,
	}

	var resp TokenResponse
	if err := c.postJSON(ctx, c.cfg.Ali.TokenURL, headers, body, &resp); err != nil {
		return nil, fmt.Errorf("获取阿里token失败: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("获取阿里token失败: 响应缺少 access_token")
	}
	return &resp, nil
}

// RefreshOpenToken 用开放平台 refresh token 换取新令牌对
// 交换地址和 client id/secret 优先从设置项读取
func (c *Client) RefreshOpenToken(ctx context.Context, token string) (*TokenResponse, error) {
	clientID, _ := c.settings.GetSetting(ctx, models.SettingOpenClientID)
	clientSecret, _ := c.settings.GetSetting(ctx, models.SettingOpenClientSec)

	body := map[string]string{
		"refresh_token": token,
		"grant_type":    "refresh_token",
		"client_id":     clientID,
		"client_secret": clientSecret,
	}
	headers := map[string]string{
		"User-Agent": c.cfg.Ali.UserAgent,
		"Referer":    "https://xhofe.top/",
	}

	url, _ := c.settings.GetSetting(ctx, models.SettingOpenTokenURL)
	if url == "" {
		url = c.cfg.Ali.OpenTokenURL
	}

	var resp TokenResponse
	if err := c.postJSON(ctx, url, headers, body, &resp); err != nil {
		return nil, fmt.Errorf("获取开放token失败: %w", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, fmt.Errorf("获取开放token失败: 响应缺少令牌")
	}
	return &resp, nil
}

// SignIn 调用签到接口完成当日签到
func (c *Client) SignIn(ctx context.Context, accessToken, refreshToken string) (*models.CheckinResult, error) {
	body := map[string]string{
		"refresh_token": refreshToken,
		"grant_type":    "refresh_token",
	}
	headers := map[string]string{
		"User-Agent":    c.cfg.Ali.UserAgent,
		"Referer":       c.cfg.Ali.Referer,
		"Authorization": "Bearer " + accessToken,
	}

	var resp models.CheckinResponse
	url := c.cfg.Ali.MemberURL + "/v1/activity/sign_in_list"
	if err := c.postJSON(ctx, url, headers, body, &resp); err != nil {
		return nil, fmt.Errorf("签到失败: %w", err)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("签到失败: 响应缺少 result")
	}
	return resp.Result, nil
}

// SignInList 查询签到日历（每天两个奖励槽位）
func (c *Client) SignInList(ctx context.Context, accessToken string) (*models.CheckinResult, error) {
	headers := map[string]string{
		"User-Agent":    c.cfg.Ali.UserAgent,
		"Referer":       c.cfg.Ali.Referer,
		"X-Canary":      "client=web,app=adrive,version=v2.4.0",
		"X-Device-Id":   "MpXKHKnbmzECAavdPTFxqhwD",
		"Authorization": "Bearer " + accessToken,
	}

	var resp models.CheckinResponse
	url := c.cfg.Ali.MemberURL + "/v2/activity/sign_in_list"
	if err := c.postJSON(ctx, url, headers, map[string]string{}, &resp); err != nil {
		return nil, fmt.Errorf("获取签到日志失败: %w", err)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("获取签到日志失败: 响应缺少 result")
	}
	return resp.Result, nil
}

// postJSON 发送 POST 请求并解析 JSON 响应
func (c *Client) postJSON(ctx context.Context, url string, headers map[string]string, payload interface{}, out interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}
	logger.Debug("阿里接口: POST %s", url)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payloadBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		logger.Error("阿里接口: 请求失败 - URL: %s, 耗时: %v, 错误: %v", url, duration, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		logger.Error("阿里接口: 请求失败 - URL: %s, 状态码: %d, 响应: %s", url, resp.StatusCode, string(respBody))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.Error("阿里接口: 解析响应失败 - URL: %s, 错误: %v", url, err)
		return err
	}

	logger.Debug("阿里接口: 请求成功 - URL: %s, 耗时: %v", url, duration)
	return nil
}
