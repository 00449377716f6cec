package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"atv-server/internal/account"
	"atv-server/internal/ali"
	"atv-server/internal/alist"
	"atv-server/internal/config"
	"atv-server/internal/database"
	"atv-server/internal/index"
	"atv-server/internal/models"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Load()
	cfg.Database.SQLite.Path = ":memory:"
	cfg.DataDir = t.TempDir()
	cfg.AdminPassword = "test-password"

	db, err := database.New(cfg)
	if err != nil {
		t.Fatalf("初始化数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	alistDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开AList数据库失败: %v", err)
	}
	gateway := alist.NewGateway(cfg, alistDB)
	if err := gateway.EnsureSchema(); err != nil {
		t.Fatalf("初始化AList表结构失败: %v", err)
	}

	svc := account.New(db, ali.NewClient(cfg, db), gateway, index.NewClient(cfg), cfg)
	server := NewServer(cfg, db, svc, gateway, "test")

	r := gin.New()
	server.setupRoutes(r)
	return server, r
}

func TestHealthCheck(t *testing.T) {
	_, r := newTestServer(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != 200 {
		t.Errorf("状态码不匹配: %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	_, r := newTestServer(t)

	t.Run("未提供令牌", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/api/accounts", nil))
		if w.Code != 401 {
			t.Errorf("状态码不匹配: %d", w.Code)
		}
	})

	t.Run("密码错误", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/accounts", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != 401 {
			t.Errorf("状态码不匹配: %d", w.Code)
		}
	})

	t.Run("Bearer认证通过", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/accounts", nil)
		req.Header.Set("Authorization", "Bearer test-password")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != 200 {
			t.Errorf("状态码不匹配: %d", w.Code)
		}
	})

	t.Run("URL参数认证通过", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/accounts?token=test-password", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != 200 {
			t.Errorf("状态码不匹配: %d", w.Code)
		}
	})
}

func TestLogin(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/login", strings.NewReader(`{"password":"test-password"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("状态码不匹配: %d", w.Code)
	}
	var resp struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if !resp.Success {
		t.Error("正确密码登录应当成功")
	}
}

func TestCreateAccountValidation(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/accounts", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-password")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Errorf("无令牌的请求应当返回400, 实际 %d", w.Code)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/accounts/42", nil)
	req.Header.Set("Authorization", "Bearer test-password")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != 404 {
		t.Errorf("不存在的账号应当返回404, 实际 %d", w.Code)
	}
}

func TestAliTokenEndpoint(t *testing.T) {
	server, r := newTestServer(t)

	ctx := context.Background()
	if err := server.db.SetSetting(ctx, "ali_secret", "s3cret"); err != nil {
		t.Fatalf("写入密钥失败: %v", err)
	}
	acc := &models.Account{RefreshToken: "master-token", Master: true}
	if err := server.db.SaveAccount(ctx, acc); err != nil {
		t.Fatalf("保存账号失败: %v", err)
	}

	t.Run("正确密钥", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/ali/token/s3cret", nil))
		if w.Code != 200 {
			t.Fatalf("状态码不匹配: %d", w.Code)
		}
		if w.Body.String() != "master-token" {
			t.Errorf("令牌不匹配: %s", w.Body.String())
		}
	})

	t.Run("错误密钥", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/ali/token/wrong", nil))
		if w.Code != 404 {
			t.Errorf("状态码不匹配: %d", w.Code)
		}
	})
}

func TestAListStatusEndpoint(t *testing.T) {
	server, r := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/alist/status", strings.NewReader(`{"status":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-password")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("状态码不匹配: %d", w.Code)
	}
	if status := server.gateway.CheckStatus(req.Context()); status != alist.StatusStarting {
		t.Errorf("状态不匹配: %d", status)
	}
}
