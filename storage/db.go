package storage

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/docqa/config"
)

// Open 打开数据库并迁移表结构。Path 为 ":memory:" 时使用内存库（测试用）。
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("access connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	err = db.AutoMigrate(
		&SessionModel{},
		&DocumentModel{},
		&ChatMessageModel{},
		&ChatSummaryModel{},
		&MemoryModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.Info("database ready", zap.String("path", cfg.Path))
	return db, nil
}
