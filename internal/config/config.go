package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DatabaseType 数据库类型
type DatabaseType string

const (
	DatabaseTypeSQLite DatabaseType = "sqlite"
	DatabaseTypeMySQL  DatabaseType = "mysql"
)

// SQLiteConfig SQLite 数据库配置
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MySQLConfig MySQL 数据库配置
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
}

// DatabaseConfig 数据库配置（自有凭证库）
type DatabaseConfig struct {
	Type   DatabaseType `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AListConfig 下游 AList 服务配置
// AList 的 data.db 不归本服务所有，只写入 x_tokens/x_storages/x_setting_items/x_users 几张表
type AListConfig struct {
	Port   int    `yaml:"port"`    // AList 内部端口
	DBPath string `yaml:"db_path"` // AList 自身的 data.db 路径
}

// AliConfig 阿里云盘接口配置
type AliConfig struct {
	TokenURL     string `yaml:"token_url"`      // 旧版 refresh token 交换地址
	OpenTokenURL string `yaml:"open_token_url"` // 开放平台 token 交换默认地址（可被设置项覆盖）
	MemberURL    string `yaml:"member_url"`     // 签到接口地址
	UserAgent    string `yaml:"user_agent"`
	Referer      string `yaml:"referer"`
}

// IndexConfig 索引服务配置
type IndexConfig struct {
	VersionURL string `yaml:"version_url"`
}

// Config 应用配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AList    AListConfig    `yaml:"alist"`
	Ali      AliConfig      `yaml:"ali"`
	Index    IndexConfig    `yaml:"index"`

	// DataDir 存放引导文件（mytoken.txt 等）的目录
	DataDir string `yaml:"data_dir"`

	// 运行时配置（可被数据库设置覆盖）
	AdminPassword string `yaml:"admin_password"`

	Debug bool `yaml:"debug"`
}

// Load 返回默认配置
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 4567,
		},
		Database: DatabaseConfig{
			Type: DatabaseTypeSQLite,
			SQLite: SQLiteConfig{
				Path: "data.sqlite3",
			},
			MySQL: MySQLConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Password: "",
				Database: "atv",
				Charset:  "utf8mb4",
			},
		},
		AList: AListConfig{
			Port:   5244,
			DBPath: "/opt/alist/data/data.db",
		},
		Ali: AliConfig{
			TokenURL:     "https://auth.aliyundrive.com/v2/account/token",
			OpenTokenURL: "https://ali.har01d.org/access_token",
			MemberURL:    "https://member.aliyundrive.com",
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Referer:      "https://www.alipan.com/",
		},
		Index: IndexConfig{
			VersionURL: "https://har01d.org/atv.version",
		},
		DataDir:       "/data",
		AdminPassword: "admin",
		Debug:         false,
	}
}

// LoadFromYAML 从 YAML 配置文件加载配置，缺失项保留默认值
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Load()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4567
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = DatabaseTypeSQLite
	}

	return cfg, nil
}

// LoadConfig 加载配置文件（config.yaml / config.yml，无配置文件则使用默认值）
func LoadConfig() (*Config, error) {
	if _, err := os.Stat("config.yaml"); err == nil {
		return LoadFromYAML("config.yaml")
	}

	if _, err := os.Stat("config.yml"); err == nil {
		return LoadFromYAML("config.yml")
	}

	return Load(), nil
}
