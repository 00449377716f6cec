package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"atv-server/internal/account"
	"atv-server/internal/alist"
	"atv-server/internal/config"
	"atv-server/internal/database"
	"atv-server/internal/logger"
)

// Server API 服务器
type Server struct {
	cfg     *config.Config
	db      *database.DB
	svc     *account.Service
	gateway *alist.Gateway
	version string
}

// NewServer 创建 API 服务器
func NewServer(cfg *config.Config, db *database.DB, svc *account.Service, gateway *alist.Gateway, version string) *Server {
	return &Server{
		cfg:     cfg,
		db:      db,
		svc:     svc,
		gateway: gateway,
		version: version,
	}
}

// Handler 构建 gin 路由
func (s *Server) Handler() *gin.Engine {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	s.setupRoutes(r)
	return r
}

// requireAdmin 管理员认证中间件
func (s *Server) requireAdmin(c *gin.Context) {
	var password string

	// 优先从 Authorization header 读取
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		password = strings.TrimSpace(auth[7:])
	} else if token := c.Query("token"); token != "" {
		password = token
	} else if cookie, err := c.Cookie("admin_session"); err == nil && cookie != "" {
		password = cookie
	} else {
		logger.Warn("管理员认证失败 - 未提供令牌 - 来源: %s", c.ClientIP())
		c.JSON(401, gin.H{"error": "未授权访问", "code": "UNAUTHORIZED"})
		c.Abort()
		return
	}

	if password != s.cfg.AdminPassword {
		logger.Warn("管理员认证失败 - 无效密码 - 来源: %s", c.ClientIP())
		c.JSON(401, gin.H{"error": "密码错误", "code": "INVALID_PASSWORD"})
		c.Abort()
		return
	}

	c.Next()
}

// handleLogin 管理员登录
func (s *Server) handleLogin(c *gin.Context) {
	logger.Info("登录尝试 - 来源: %s", c.ClientIP())

	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("登录失败 - 无效的请求格式 - 来源: %s", c.ClientIP())
		c.JSON(400, gin.H{"error": "无效的请求格式"})
		return
	}

	if req.Password == s.cfg.AdminPassword {
		logger.Info("登录成功 - 来源: %s", c.ClientIP())
		c.SetCookie("admin_session", s.cfg.AdminPassword, 86400*30, "/", "", false, true)
		c.JSON(200, gin.H{"success": true, "message": "登录成功"})
	} else {
		logger.Warn("登录失败 - 无效密码 - 来源: %s", c.ClientIP())
		c.JSON(200, gin.H{"success": false, "message": "密码错误"})
	}
}
