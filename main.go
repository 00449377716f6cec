package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"atv-server/internal/account"
	"atv-server/internal/ali"
	"atv-server/internal/alist"
	"atv-server/internal/api"
	"atv-server/internal/config"
	"atv-server/internal/database"
	"atv-server/internal/index"
	"atv-server/internal/logger"

	_ "time/tzdata" // 嵌入时区数据库，避免容器内缺少 tzdata
)

// Version 版本号，通过 ldflags 注入
var Version = "dev"

func main() {
	// 解析命令行参数
	portFlag := flag.Int("port", 0, "服务器监听端口（0 表示使用配置文件或默认值 4567）")
	flag.IntVar(portFlag, "p", 0, "服务器监听端口（-port 的简写）")
	dataDirFlag := flag.String("data-dir", "", "数据目录路径（存放引导文件，不指定则使用配置值）")
	flag.Parse()

	// 设置时区为北京时间（UTC+8）
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		log.Printf("警告: 加载时区失败，使用 UTC+8: %v", err)
		loc = time.FixedZone("CST", 8*3600)
	}
	time.Local = loc

	// 初始化日志系统
	if err := logger.Init(); err != nil {
		log.Fatalf("初始化日志系统失败: %v", err)
	}
	logger.Info("=== atv-server %s 启动中 ===", Version)
	logger.Info("系统时区: %s", time.Local.String())

	// 加载配置（优先 YAML，无配置文件则使用默认值）
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warn("加载配置文件失败，使用默认配置: %v", err)
		cfg = config.Load()
	}
	logger.SetDebugEnabled(cfg.Debug)

	if *portFlag > 0 && *portFlag <= 65535 {
		cfg.Server.Port = *portFlag
		logger.Info("使用命令行指定端口: %d", cfg.Server.Port)
	}
	if *dataDirFlag != "" {
		cfg.DataDir = *dataDirFlag
		logger.Info("使用命令行指定数据目录: %s", cfg.DataDir)
	}

	// 初始化自有凭证库
	db, err := database.New(cfg)
	if err != nil {
		logger.Error("初始化数据库失败: %v", err)
		log.Fatalf("数据库初始化失败: %v", err)
	}
	defer db.Close()
	logger.Info("数据库初始化成功")

	// 数据库中的管理密码优先于配置文件
	if password, err := db.GetSetting(context.Background(), "admin_password"); err == nil && password != "" {
		cfg.AdminPassword = password
	}

	// 连接 AList 的 data.db
	alistDB, err := gorm.Open(sqlite.Open(cfg.AList.DBPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Error("打开AList数据库失败: %v", err)
		log.Fatalf("打开AList数据库失败: %v", err)
	}
	gateway := alist.NewGateway(cfg, alistDB)
	if err := gateway.EnsureSchema(); err != nil {
		logger.Warn("初始化AList表结构失败: %v", err)
	}

	// 组装账号服务
	aliClient := ali.NewClient(cfg, db)
	indexClient := index.NewClient(cfg)
	svc := account.New(db, aliClient, gateway, indexClient, cfg)

	setupCtx, setupCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	if err := svc.Setup(setupCtx); err != nil {
		logger.Error("启动初始化失败: %v", err)
	}
	setupCancel()
	defer svc.Shutdown()

	// 创建 API 服务器
	server := api.NewServer(cfg, db, svc, gateway, Version)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		logger.Info("HTTP 服务器监听中 - 地址: http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP 服务器启动失败: %v", err)
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("收到退出信号，开始优雅关闭")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP 服务器关闭失败: %v", err)
	}
	logger.Close()
}
