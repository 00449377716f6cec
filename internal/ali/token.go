package ali

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var errInvalidToken = errors.New("令牌格式无效")

// 开放平台令牌在过期前三天内视为需要刷新
const openTokenRefreshWindow = 3 * 24 * time.Hour

// 旧版令牌每 24 小时刷新一次，加 60 秒余量避免边界抖动
const refreshTokenInterval = 24 * time.Hour

// NeedsRefreshToken 判断旧版 refresh token 是否到期需要刷新
func NeedsRefreshToken(lastRefresh *time.Time, now time.Time) bool {
	if lastRefresh == nil {
		return true
	}
	return lastRefresh.Add(refreshTokenInterval).Before(now.Add(60 * time.Second))
}

// ShouldRefreshOpenToken 判断开放平台令牌是否需要刷新
// 令牌为空时无从刷新；解码失败或没有刷新记录时保守刷新
func ShouldRefreshOpenToken(token string, lastRefresh *time.Time, now time.Time) bool {
	if token == "" {
		return false
	}

	exp, err := openTokenExpiry(token)
	if err != nil {
		return true
	}
	if lastRefresh == nil {
		return true
	}
	return !exp.After(now.Add(openTokenRefreshWindow))
}

// openTokenExpiry 解码 JWT 负载中的 exp 字段
func openTokenExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return time.Time{}, errInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.Exp == 0 {
		return time.Time{}, errInvalidToken
	}
	return time.Unix(claims.Exp, 0), nil
}
