package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitPG 打开 PostgreSQL 连接，models 非空时自动建表
func InitPG(dsn string, models ...any) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	// 只有分发任务在写，连接数不需要太大
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	if len(models) > 0 {
		if err := gormDB.AutoMigrate(models...); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return gormDB, nil
}
