package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"atv-server/internal/config"
	"atv-server/internal/logger"
	"atv-server/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB 封装 GORM 数据库连接（自有凭证库）
type DB struct {
	gorm *gorm.DB
	cfg  *config.Config
}

// New 创建新的数据库实例（支持 SQLite 和 MySQL）
func New(cfg *config.Config) (*DB, error) {
	var dialector gorm.Dialector

	switch cfg.Database.Type {
	case config.DatabaseTypeMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			cfg.Database.MySQL.User,
			cfg.Database.MySQL.Password,
			cfg.Database.MySQL.Host,
			cfg.Database.MySQL.Port,
			cfg.Database.MySQL.Database,
			cfg.Database.MySQL.Charset,
		)
		fmt.Printf("[DB] 使用 MySQL 数据库: %s@%s:%d/%s\n",
			cfg.Database.MySQL.User,
			cfg.Database.MySQL.Host,
			cfg.Database.MySQL.Port,
			cfg.Database.MySQL.Database,
		)
		dialector = mysql.Open(dsn)

	default: // sqlite
		dbPath := cfg.Database.SQLite.Path
		if dbPath == "" {
			dbPath = "data.sqlite3"
		}
		dsn := fmt.Sprintf("%s?_busy_timeout=30000&_txlock=immediate", dbPath)
		fmt.Printf("[DB] 使用 SQLite 数据库: %s\n", dbPath)
		dialector = sqlite.Open(dsn)
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if cfg.Debug {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	gormDB, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接失败: %w", err)
	}

	if cfg.Database.Type == config.DatabaseTypeMySQL {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
	} else {
		// SQLite 只支持一个写入连接
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)

		// 启用 WAL 模式（允许读写并发）
		if err := gormDB.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			fmt.Printf("[DB] 警告: 启用 WAL 模式失败: %v\n", err)
		}
		if err := gormDB.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
			fmt.Printf("[DB] 警告: 设置同步模式失败: %v\n", err)
		}
	}

	db := &DB{gorm: gormDB, cfg: cfg}

	if err := db.autoMigrate(); err != nil {
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	return db, nil
}

// autoMigrate 自动迁移数据库结构
func (db *DB) autoMigrate() error {
	logger.Info("开始自动迁移数据库结构...")

	type tableInfo struct {
		model interface{}
		name  string
	}

	tables := []tableInfo{
		{&models.Setting{}, "settings"},
		{&models.Account{}, "accounts"},
	}

	migrator := db.gorm.Migrator()
	for _, t := range tables {
		if !migrator.HasTable(t.model) {
			if err := migrator.CreateTable(t.model); err != nil {
				logger.Warn("创建表 %s 时出现警告: %v", t.name, err)
			} else {
				logger.Info("创建表: %s", t.name)
			}
		} else {
			// 表存在，只添加缺失的列（不修改现有列的约束）
			if err := db.addMissingColumns(t.model, t.name); err != nil {
				logger.Warn("更新表 %s 结构时出现警告: %v", t.name, err)
			}
		}
	}

	logger.Info("数据库结构迁移完成")
	return nil
}

// addMissingColumns 只添加缺失的列，不修改现有列
func (db *DB) addMissingColumns(model interface{}, tableName string) error {
	migrator := db.gorm.Migrator()

	stmt := &gorm.Statement{DB: db.gorm}
	if err := stmt.Parse(model); err != nil {
		return err
	}

	for _, field := range stmt.Schema.Fields {
		if field.DBName == "" {
			continue
		}
		if !migrator.HasColumn(model, field.DBName) {
			if err := migrator.AddColumn(model, field.DBName); err != nil {
				logger.Warn("添加列 %s.%s 时出现警告: %v", tableName, field.DBName, err)
			} else {
				logger.Info("添加列: %s.%s", tableName, field.DBName)
			}
		}
	}

	return nil
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetGormDB 获取底层 GORM 实例（用于测试或高级操作）
func (db *DB) GetGormDB() *gorm.DB {
	return db.gorm
}

// IsSQLite 判断是否为 SQLite 数据库
func (db *DB) IsSQLite() bool {
	return db.cfg.Database.Type != config.DatabaseTypeMySQL
}

// RetryOnLock 为 SQLite 提供写入重试机制
// 当遇到 database is locked 错误时，自动重试
func (db *DB) RetryOnLock(ctx context.Context, maxRetries int, fn func() error) error {
	// MySQL 不需要重试机制
	if !db.IsSQLite() {
		return fn()
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !strings.Contains(lastErr.Error(), "database is locked") &&
			!strings.Contains(lastErr.Error(), "SQLITE_BUSY") {
			return lastErr
		}

		// 指数退避重试
		backoff := time.Duration(10*(i+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}
