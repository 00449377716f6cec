package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Server.Port != 4567 {
		t.Errorf("默认端口不匹配: %d", cfg.Server.Port)
	}
	if cfg.Database.Type != DatabaseTypeSQLite {
		t.Errorf("默认数据库类型不匹配: %s", cfg.Database.Type)
	}
	if cfg.AList.Port != 5244 {
		t.Errorf("默认AList端口不匹配: %d", cfg.AList.Port)
	}
	if cfg.Ali.TokenURL == "" || cfg.Ali.OpenTokenURL == "" {
		t.Error("默认接口地址不应为空")
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8080
alist:
  port: 5245
  db_path: /tmp/data.db
data_dir: /tmp/atv
debug: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写配置文件失败: %v", err)
	}

	cfg, err := LoadFromYAML(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("端口不匹配: %d", cfg.Server.Port)
	}
	if cfg.AList.Port != 5245 || cfg.AList.DBPath != "/tmp/data.db" {
		t.Errorf("AList配置不匹配: %+v", cfg.AList)
	}
	if cfg.DataDir != "/tmp/atv" {
		t.Errorf("数据目录不匹配: %s", cfg.DataDir)
	}
	if !cfg.Debug {
		t.Error("调试模式应当开启")
	}
	// 未指定的项保留默认值
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("主机默认值丢失: %s", cfg.Server.Host)
	}
	if cfg.Ali.TokenURL == "" {
		t.Error("接口地址默认值丢失")
	}
}

func TestLoadFromYAMLMissing(t *testing.T) {
	if _, err := LoadFromYAML(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("不存在的配置文件应当返回错误")
	}
}
