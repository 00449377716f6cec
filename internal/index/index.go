package index

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"atv-server/internal/config"
	"atv-server/internal/logger"
)

// Client 查询远端索引文件版本
type Client struct {
	httpClient *http.Client
	cfg        *config.Config
}

// NewClient 创建索引版本客户端
func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		cfg: cfg,
	}
}

// GetRemoteVersion 获取远端索引版本号，失败只记日志
func (c *Client) GetRemoteVersion(ctx context.Context) string {
	if c.cfg.Index.VersionURL == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.Index.VersionURL, nil)
	if err != nil {
		return ""
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("获取远端索引版本失败: %v", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("获取远端索引版本失败: 状态码 %d", resp.StatusCode)
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return ""
	}
	version := strings.TrimSpace(string(body))
	logger.Info("远端索引版本: %s", version)
	return version
}
