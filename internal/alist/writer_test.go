package alist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"atv-server/internal/config"
	"atv-server/internal/models"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	g := NewGateway(config.Load(), db)
	if err := g.EnsureSchema(); err != nil {
		t.Fatalf("建表失败: %v", err)
	}
	return g
}

func TestDBWriterUpsertToken(t *testing.T) {
	g := newTestGateway(t)
	w := &dbWriter{g: g}
	ctx := context.Background()

	token := &models.AListToken{Key: "RefreshToken-1", Value: "v1", AccountID: 1, Modified: "2024-06-01 09:00:00+08:00"}
	if err := w.UpsertToken(ctx, token); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	token.Value = "v2"
	if err := w.UpsertToken(ctx, token); err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	var got models.AListToken
	if err := g.db.Where("key = ?", "RefreshToken-1").First(&got).Error; err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.Value != "v2" {
		t.Errorf("token 值不匹配: %s", got.Value)
	}

	var count int64
	g.db.Model(&models.AListToken{}).Count(&count)
	if count != 1 {
		t.Errorf("记录数不匹配: %d", count)
	}
}

func TestDBWriterSaveStorage(t *testing.T) {
	g := newTestGateway(t)
	w := &dbWriter{g: g}
	ctx := context.Background()

	storage := &models.AListStorage{ID: 4600, MountPath: "/\U0001F680我的阿里云盘/账号", Driver: "AliyundriveShare2Open"}
	if err := w.SaveStorage(ctx, storage); err != nil {
		t.Fatalf("写入失败: %v", err)
	}

	storage.MountPath = "/\U0001F680我的阿里云盘/新账号"
	if err := w.SaveStorage(ctx, storage); err != nil {
		t.Fatalf("覆盖失败: %v", err)
	}

	var got models.AListStorage
	if err := g.db.Where("id = ?", 4600).First(&got).Error; err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.MountPath != storage.MountPath {
		t.Errorf("挂载路径不匹配: %s", got.MountPath)
	}

	if err := w.DeleteStorage(ctx, 4600); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	var count int64
	g.db.Model(&models.AListStorage{}).Count(&count)
	if count != 0 {
		t.Errorf("删除后记录数不匹配: %d", count)
	}
}

func TestWriterSelection(t *testing.T) {
	ctx := context.Background()

	t.Run("停止时返回直写器", func(t *testing.T) {
		g := newTestGateway(t)
		g.SetStatus(StatusStopped)
		w, status, err := g.Writer(ctx)
		if err != nil {
			t.Fatalf("意外错误: %v", err)
		}
		if status != StatusStopped {
			t.Errorf("状态不匹配: %d", status)
		}
		if _, ok := w.(*dbWriter); !ok {
			t.Errorf("写入器类型不匹配: %T", w)
		}
	})

	t.Run("启动中返回ErrStarting", func(t *testing.T) {
		g := newTestGateway(t)
		g.SetStatus(StatusStarting)
		w, status, err := g.Writer(ctx)
		if err != ErrStarting {
			t.Fatalf("应当返回 ErrStarting, 实际: %v", err)
		}
		if status != StatusStarting {
			t.Errorf("状态不匹配: %d", status)
		}
		if _, ok := w.(*dbWriter); !ok {
			t.Errorf("写入器类型不匹配: %T", w)
		}
	})

	t.Run("运行中返回接口写入器", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/ping" {
				w.Write([]byte("pong"))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		g := newTestGateway(t)
		u, _ := url.Parse(server.URL)
		port, _ := strconv.Atoi(u.Port())
		g.cfg.AList.Port = port

		w, status, err := g.Writer(ctx)
		if err != nil {
			t.Fatalf("意外错误: %v", err)
		}
		if status != StatusRunning {
			t.Errorf("状态不匹配: %d", status)
		}
		if _, ok := w.(*apiWriter); !ok {
			t.Errorf("写入器类型不匹配: %T", w)
		}
	})
}

func TestAPIWriterUpsertToken(t *testing.T) {
	var pushed bool
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/admin/token/update" {
			pushed = true
			var token models.AListToken
			json.NewDecoder(r.Body).Decode(&token)
			gotKey = token.Key
			w.Write([]byte(`{"code":200}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	g := newTestGateway(t)
	u, _ := url.Parse(server.URL)
	port, _ := strconv.Atoi(u.Port())
	g.cfg.AList.Port = port

	w := &apiWriter{g: g}
	ctx := context.Background()
	token := &models.AListToken{Key: "RefreshToken-1", Value: "v1", AccountID: 1}
	if err := w.UpsertToken(ctx, token); err != nil {
		t.Fatalf("推送失败: %v", err)
	}

	// 运行中必须走管理接口让 AList 刷新内存缓存，不直写库
	if !pushed {
		t.Error("token 更新接口未被调用")
	}
	if gotKey != "RefreshToken-1" {
		t.Errorf("推送的 key 不匹配: %s", gotKey)
	}
	var count int64
	g.db.Model(&models.AListToken{}).Count(&count)
	if count != 0 {
		t.Errorf("运行中不应直写 token 表, 记录数: %d", count)
	}
}

func TestCallAdminReloginOnAuthFailure(t *testing.T) {
	var loginCount, adminCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			loginCount++
			fmt.Fprintf(w, `{"code":200,"data":{"token":"token-%d"}}`, loginCount)
		case "/api/admin/storage/delete":
			adminCalls++
			if r.Header.Get("Authorization") == "token-1" {
				w.Write([]byte(`{"code":401,"message":"token过期"}`))
				return
			}
			w.Write([]byte(`{"code":200}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	g := newTestGateway(t)
	u, _ := url.Parse(server.URL)
	port, _ := strconv.Atoi(u.Port())
	g.cfg.AList.Port = port

	ctx := context.Background()
	if err := g.Login(ctx, "atv", "secret"); err != nil {
		t.Fatalf("登录失败: %v", err)
	}

	// 首次调用拿到过期 token，应重新登录后重试成功
	if err := g.callAdmin(ctx, "/api/admin/storage/delete?id=4600", nil); err != nil {
		t.Fatalf("管理接口调用失败: %v", err)
	}
	if loginCount != 2 {
		t.Errorf("重新登录次数不匹配: %d", loginCount)
	}
	if adminCalls != 2 {
		t.Errorf("管理接口调用次数不匹配: %d", adminCalls)
	}
	if g.cachedToken() != "token-2" {
		t.Errorf("缓存 token 未更新: %s", g.cachedToken())
	}
}

func TestAPIWriterStorageOps(t *testing.T) {
	var deleted, enabled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/admin/storage/delete":
			deleted = true
			w.Write([]byte(`{"code":200}`))
		case r.URL.Path == "/api/admin/storage/enable":
			enabled = true
			w.Write([]byte(`{"code":200}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	g := newTestGateway(t)
	u, _ := url.Parse(server.URL)
	port, _ := strconv.Atoi(u.Port())
	g.cfg.AList.Port = port

	w := &apiWriter{g: g}
	ctx := context.Background()
	if err := w.DeleteStorage(ctx, 4600); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if err := w.EnableStorage(ctx, 4600); err != nil {
		t.Fatalf("启用失败: %v", err)
	}
	if !deleted || !enabled {
		t.Errorf("接口未被调用: deleted=%v enabled=%v", deleted, enabled)
	}

	// 接口路径写挂载仍然直写数据库，并标记为禁用等待启用
	storage := &models.AListStorage{ID: 4601, MountPath: "/备份盘", Driver: "AliyundriveOpen"}
	if err := w.SaveStorage(ctx, storage); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	var got models.AListStorage
	if err := g.db.Where("id = ?", 4601).First(&got).Error; err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if !got.Disabled {
		t.Error("接口路径写入的挂载应当先禁用")
	}
}
