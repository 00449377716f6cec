package models

import (
	"time"
)

// Account 阿里云盘账号，保存两套令牌：
// 旧版 web 端令牌（refresh_token/access_token）和开放平台令牌（open_token/open_access_token）。
// 每个令牌带一个最近刷新时间，刷新策略据此判断是否到期。
type Account struct {
	ID                  int        `gorm:"primaryKey;autoIncrement" json:"id"`
	Nickname            string     `gorm:"size:255" json:"nickname"`
	RefreshToken        string     `gorm:"column:refresh_token;size:128" json:"refreshToken"`
	RefreshTokenTime    *time.Time `gorm:"column:refresh_token_time" json:"refreshTokenTime"`
	AccessToken         string     `gorm:"column:access_token;type:text" json:"accessToken"`
	AccessTokenTime     *time.Time `gorm:"column:access_token_time" json:"accessTokenTime"`
	OpenToken           string     `gorm:"column:open_token;type:text" json:"openToken"`
	OpenTokenTime       *time.Time `gorm:"column:open_token_time" json:"openTokenTime"`
	OpenAccessToken     string     `gorm:"column:open_access_token;type:text" json:"openAccessToken"`
	OpenAccessTokenTime *time.Time `gorm:"column:open_access_token_time" json:"openAccessTokenTime"`
	CheckinTime         *time.Time `gorm:"column:checkin_time" json:"checkinTime"`
	CheckinDays         int        `gorm:"column:checkin_days" json:"checkinDays"`
	AutoCheckin         bool       `gorm:"column:auto_checkin" json:"autoCheckin"`
	ShowMyAli           bool       `gorm:"column:show_my_ali" json:"showMyAli"`
	Master              bool       `gorm:"column:master" json:"master"`
	UseProxy            bool       `gorm:"column:use_proxy" json:"useProxy"`
	Clean               bool       `gorm:"column:clean" json:"clean"`
	Concurrency         int        `gorm:"column:concurrency" json:"concurrency"`
	ChunkSize           int        `gorm:"column:chunk_size" json:"chunkSize"`
}

// TableName 指定表名
func (Account) TableName() string {
	return "accounts"
}

// AccountDto 创建/更新账号的请求数据
type AccountDto struct {
	RefreshToken        string     `json:"refreshToken"`
	RefreshTokenTime    *time.Time `json:"refreshTokenTime"`
	AccessToken         string     `json:"accessToken"`
	AccessTokenTime     *time.Time `json:"accessTokenTime"`
	OpenToken           string     `json:"openToken"`
	OpenTokenTime       *time.Time `json:"openTokenTime"`
	OpenAccessToken     string     `json:"openAccessToken"`
	OpenAccessTokenTime *time.Time `json:"openAccessTokenTime"`
	AutoCheckin         bool       `json:"autoCheckin"`
	ShowMyAli           bool       `json:"showMyAli"`
	Master              bool       `json:"master"`
	UseProxy            bool       `json:"useProxy"`
	Clean               bool       `json:"clean"`
	Concurrency         int        `json:"concurrency"`
	ChunkSize           int        `json:"chunkSize"`
}

// TimeFormat 时间格式（带时区）
const TimeFormat = "2006-01-02T15:04:05Z07:00"
