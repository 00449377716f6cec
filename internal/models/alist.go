package models

// AList data.db 中本服务会写入的几张表。
// 表结构归 AList 所有，这里只声明用到的列。

// AListToken x_tokens 表记录，key 形如 RefreshToken-{账号ID}
type AListToken struct {
	Key       string `gorm:"column:key;primaryKey" json:"key"`
	Value     string `gorm:"column:value" json:"value"`
	AccountID int    `gorm:"column:account_id" json:"accountId"`
	Modified  string `gorm:"column:modified" json:"modified"`
}

// TableName 指定表名
func (AListToken) TableName() string {
	return "x_tokens"
}

// AListStorage x_storages 表记录（挂载定义）
type AListStorage struct {
	ID              int    `gorm:"column:id;primaryKey" json:"id"`
	MountPath       string `gorm:"column:mount_path" json:"mount_path"`
	Order           int    `gorm:"column:order" json:"order"`
	Driver          string `gorm:"column:driver" json:"driver"`
	CacheExpiration int    `gorm:"column:cache_expiration" json:"cache_expiration"`
	Status          string `gorm:"column:status" json:"status"`
	Addition        string `gorm:"column:addition" json:"addition"`
	Remark          string `gorm:"column:remark" json:"remark"`
	Modified        string `gorm:"column:modified" json:"modified"`
	Disabled        bool   `gorm:"column:disabled" json:"disabled"`
	OrderBy         string `gorm:"column:order_by" json:"order_by"`
	OrderDirection  string `gorm:"column:order_direction" json:"order_direction"`
	WebdavPolicy    string `gorm:"column:webdav_policy" json:"webdav_policy"`
}

// TableName 指定表名
func (AListStorage) TableName() string {
	return "x_storages"
}

// AliyundriveOpenAddition AliyundriveOpen 驱动的 addition 配置
type AliyundriveOpenAddition struct {
	DriveType      string `json:"drive_type"`
	RefreshToken   string `json:"refresh_token"`
	RootFolderID   string `json:"root_folder_id"`
	OrderBy        string `json:"order_by"`
	OrderDirection string `json:"order_direction"`
	OauthTokenURL  string `json:"oauth_token_url"`
	RemoveWay      string `json:"remove_way"`
	InternalUpload bool   `json:"internal_upload"`
	Concurrency    int    `json:"concurrency"`
	ChunkSize      int    `json:"chunk_size"`
	UseProxy       bool   `json:"use_proxy"`
}

// AListSettingItem x_setting_items 表记录
type AListSettingItem struct {
	Key   string `gorm:"column:key;primaryKey" json:"key"`
	Value string `gorm:"column:value" json:"value"`
	Type  string `gorm:"column:type" json:"type"`
	Flag  int    `gorm:"column:flag" json:"flag"`
	Group int    `gorm:"column:group" json:"group"`
}

// TableName 指定表名
func (AListSettingItem) TableName() string {
	return "x_setting_items"
}

// AListUser x_users 表记录
type AListUser struct {
	ID         int    `gorm:"column:id;primaryKey" json:"id"`
	Username   string `gorm:"column:username" json:"username"`
	Password   string `gorm:"column:password" json:"password"`
	BasePath   string `gorm:"column:base_path" json:"base_path"`
	Role       int    `gorm:"column:role" json:"role"`
	Permission int    `gorm:"column:permission" json:"permission"`
	Disabled   bool   `gorm:"column:disabled" json:"disabled"`
}

// TableName 指定表名
func (AListUser) TableName() string {
	return "x_users"
}

// AListLogin AList 访客登录配置
type AListLogin struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Enabled  bool   `json:"enabled"`
}
