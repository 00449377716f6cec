package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"atv-server/internal/account"
	"atv-server/internal/alist"
	"atv-server/internal/logger"
	"atv-server/internal/models"
)

// writeError 按错误类型映射 HTTP 状态码
func writeError(c *gin.Context, err error) {
	var validationErr *account.ValidationError
	var notFoundErr *account.NotFoundError
	var checkedInErr *account.AlreadyCheckedInError
	var providerErr *account.ProviderError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(400, gin.H{"error": validationErr.Message})
	case errors.As(err, &notFoundErr):
		c.JSON(404, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &checkedInErr):
		c.JSON(400, gin.H{"error": checkedInErr.Error()})
	case errors.Is(err, alist.ErrStarting):
		c.JSON(503, gin.H{"error": "AList正在启动中, 请稍后重试", "retryable": true})
	case errors.As(err, &providerErr):
		c.JSON(502, gin.H{"error": providerErr.Error()})
	default:
		logger.Error("请求处理失败: %v", err)
		c.JSON(500, gin.H{"error": "内部错误"})
	}
}

func (s *Server) handleHealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(200, gin.H{"version": s.version})
}

// pathID 解析路径中的账号 ID
func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(400, gin.H{"error": "无效的账号ID"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleListAccounts(c *gin.Context) {
	accounts, err := s.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, accounts)
}

func (s *Server) handleGetAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	acc, err := s.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, acc)
}

func (s *Server) handleCreateAccount(c *gin.Context) {
	var dto models.AccountDto
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(400, gin.H{"error": "无效的请求格式"})
		return
	}
	acc, err := s.svc.Create(c.Request.Context(), &dto)
	if err != nil {
		if errors.Is(err, alist.ErrStarting) && acc != nil {
			// 账号已创建, 挂载等 AList 起来再生效
			c.JSON(200, acc)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(200, acc)
}

func (s *Server) handleUpdateAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var dto models.AccountDto
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(400, gin.H{"error": "无效的请求格式"})
		return
	}
	acc, err := s.svc.Update(c.Request.Context(), id, &dto)
	if err != nil {
		if errors.Is(err, alist.ErrStarting) && acc != nil {
			c.JSON(200, acc)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(200, acc)
}

func (s *Server) handleUpdateToken(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var dto models.AccountDto
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(400, gin.H{"error": "无效的请求格式"})
		return
	}
	acc, err := s.svc.UpdateToken(c.Request.Context(), id, &dto)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, acc)
}

func (s *Server) handleDeleteAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleCheckin(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	result, err := s.svc.Checkin(c.Request.Context(), id, force)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, result)
}

func (s *Server) handleCheckinLogs(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	logs, err := s.svc.GetCheckinLogs(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, logs)
}

func (s *Server) handleGetSchedule(c *gin.Context) {
	t := s.svc.ScheduleTime(c.Request.Context())
	c.JSON(200, gin.H{"scheduleTime": t.Format(models.TimeFormat)})
}

func (s *Server) handleUpdateSchedule(c *gin.Context) {
	var req struct {
		ScheduleTime string `json:"scheduleTime"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "无效的请求格式"})
		return
	}
	t, err := time.Parse(models.TimeFormat, req.ScheduleTime)
	if err != nil {
		c.JSON(400, gin.H{"error": "无效的时间格式"})
		return
	}
	if err := s.svc.UpdateScheduleTime(c.Request.Context(), t); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleGetAListLogin(c *gin.Context) {
	login, err := s.svc.AListLogin(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, login)
}

func (s *Server) handleUpdateAListLogin(c *gin.Context) {
	var login models.AListLogin
	if err := c.ShouldBindJSON(&login); err != nil {
		c.JSON(400, gin.H{"error": "无效的请求格式"})
		return
	}
	if err := s.svc.UpdateAListLogin(c.Request.Context(), &login); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"success": true})
}

// handleAListStatus 由进程管理器上报 AList 启动阶段
func (s *Server) handleAListStatus(c *gin.Context) {
	var req struct {
		Status int `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "无效的请求格式"})
		return
	}
	if req.Status < 0 || req.Status > 2 {
		c.JSON(400, gin.H{"error": "无效的状态值"})
		return
	}
	s.gateway.SetStatus(req.Status)
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleResetPassword(c *gin.Context) {
	password, err := s.svc.ResetAdminPassword(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"password": password})
}

// handleAliToken 用签名密钥查主账号的旧版 refresh token
func (s *Server) handleAliToken(c *gin.Context) {
	acc, err := s.svc.GetAliRefreshToken(c.Request.Context(), c.Param("secret"))
	if err != nil {
		writeError(c, err)
		return
	}
	if acc == nil || acc.RefreshToken == "" {
		c.JSON(404, gin.H{"error": "未找到"})
		return
	}
	c.String(200, acc.RefreshToken)
}

// handleAliOpenToken 用签名密钥查主账号的开放平台 token
func (s *Server) handleAliOpenToken(c *gin.Context) {
	acc, err := s.svc.GetAliRefreshToken(c.Request.Context(), c.Param("secret"))
	if err != nil {
		writeError(c, err)
		return
	}
	if acc == nil || acc.OpenToken == "" {
		c.JSON(404, gin.H{"error": "未找到"})
		return
	}
	c.String(200, acc.OpenToken)
}
