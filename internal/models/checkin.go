package models

import (
	"encoding/json"
	"time"
)

// CheckinResponse 阿里云盘签到接口响应
type CheckinResponse struct {
	Success bool           `json:"success"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
	Result  *CheckinResult `json:"result"`
}

// CheckinResult 签到结果，仅 CheckinDays/CheckinTime 回写到账号，本身不落库
type CheckinResult struct {
	Subject     string           `json:"subject,omitempty"`
	Nickname    string           `json:"nickname,omitempty"`
	SignInCount int              `json:"signInCount"`
	SignInLogs  []map[string]any `json:"signInLogs,omitempty"`
	SignInInfos []SignInInfo     `json:"signInInfos,omitempty"`
	CheckinTime *time.Time       `json:"checkinTime,omitempty"`
}

// SignInInfo 单日签到信息，每天两个奖励槽位
type SignInInfo struct {
	Day     json.Number    `json:"day"`
	Rewards []SignInReward `json:"rewards"`
}

// SignInReward 签到奖励
type SignInReward struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// RewardStatusNotStart 未开始的奖励状态，签到日志遍历到该状态即停止
const RewardStatusNotStart = "notStart"

// CheckinLog 展平后的签到日志条目
type CheckinLog struct {
	Date   string `json:"date"`
	Name   string `json:"name"`
	Status string `json:"status"`
}
