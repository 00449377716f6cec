package models

// Setting 字符串键值设置项
type Setting struct {
	Key   string `gorm:"column:setting_key;primaryKey;size:100" json:"key"`
	Value string `gorm:"column:setting_value;type:text" json:"value"`
}

// TableName 指定表名
func (Setting) TableName() string {
	return "settings"
}

// 设置项键名
const (
	SettingAliSecret       = "ali_secret"
	SettingScheduleTime    = "schedule_time"
	SettingOpenTokenURL    = "open_token_url"
	SettingOpenClientID    = "open_api_client_id"
	SettingOpenClientSec   = "open_api_client_secret"
	SettingRefreshToken    = "refresh_token"
	SettingOpenToken       = "open_token"
	SettingFolderID        = "folder_id"
	SettingRefreshTime     = "refresh_token_time"
	SettingOpenTokenTime   = "open_token_time"
	SettingCheckinTime     = "checkin_time"
	SettingCheckinDays     = "checkin_days"
	SettingAutoCheckin     = "auto_checkin"
	SettingShowMyAli       = "show_my_ali"
	SettingAListUsername   = "alist_username"
	SettingAListPassword   = "alist_password"
	SettingAListLogin      = "alist_login"
	SettingAtvPassword     = "atv_password"
	SettingAdminPassword   = "admin_password"
	SettingAliAccountID    = "ali_account_id"
)
