package api

import (
	"github.com/gin-gonic/gin"
)

// setupRoutes 配置所有 HTTP 路由
func (s *Server) setupRoutes(r *gin.Engine) {
	// 健康检查
	r.GET("/healthz", s.handleHealthCheck)

	// 版本信息
	r.GET("/version", s.handleVersion)

	// 管理员登录
	r.POST("/api/login", s.handleLogin)

	// 签名密钥查询主账号令牌（无需登录）
	r.GET("/ali/token/:secret", s.handleAliToken)
	r.GET("/ali/open_token/:secret", s.handleAliOpenToken)

	// 管理接口
	admin := r.Group("/api", s.requireAdmin)
	{
		admin.GET("/accounts", s.handleListAccounts)
		admin.POST("/accounts", s.handleCreateAccount)
		admin.GET("/accounts/:id", s.handleGetAccount)
		admin.POST("/accounts/:id", s.handleUpdateAccount)
		admin.POST("/accounts/:id/token", s.handleUpdateToken)
		admin.DELETE("/accounts/:id", s.handleDeleteAccount)
		admin.POST("/accounts/:id/checkin", s.handleCheckin)
		admin.GET("/accounts/:id/checkin", s.handleCheckinLogs)

		admin.GET("/schedule", s.handleGetSchedule)
		admin.POST("/schedule", s.handleUpdateSchedule)

		admin.GET("/alist/login", s.handleGetAListLogin)
		admin.POST("/alist/login", s.handleUpdateAListLogin)
		admin.POST("/alist/status", s.handleAListStatus)
		admin.POST("/reset_password", s.handleResetPassword)
	}
}
