// Package database 提供 MySQL/Redis 连接与 GORM 实例的初始化。
package database

import (
	"time"

	"orgreport/internal/model"
	"orgreport/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"moul.io/zapgorm2"
)

// DB 全局 GORM 数据库实例，在 InitMySQL 成功后可在业务层通过 database.DB 进行 CRUD 等操作。
var DB *gorm.DB

// InitMySQL 根据 DSN 连接 MySQL 并初始化全局 DB。
// GORM 的 SQL 日志通过 zapgorm2 接入统一的 zap logger。
// 会配置连接池（最大空闲连接数、最大打开连接数、连接最大存活时间），失败时调用 log.Fatal 退出进程。
func InitMySQL(dsn string) {
	gormLogger := zapgorm2.New(log.GetLogger())
	gormLogger.SetAsDefault()

	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		log.Fatal("Failed to connect to MySQL", err)
	}
	log.Info("Connected to MySQL")

	// 获取底层 *sql.DB 以配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("Failed to get SQL DB", err)
	}
	sqlDB.SetMaxIdleConns(10)           // 最大空闲连接数
	sqlDB.SetMaxOpenConns(100)          // 最大打开连接数
	sqlDB.SetConnMaxLifetime(time.Hour) // 连接最大存活时间，超时连接会被回收

	log.Info("MySQL initialized successfully")
}

// RunMigrate 执行表结构迁移并写入内置角色。
func RunMigrate() error {
	log.Info("Running migrations...")

	if err := DB.AutoMigrate(
		&model.User{},
		&model.Department{},
		&model.Role{},
		&model.RoleAssignment{},
		&model.Report{},
		&model.ReportAggregation{},
		&model.ReportApproval{},
		&model.AuditEntry{},
	); err != nil {
		log.Errorf("Failed to run migrations: %v", err)
		return err
	}

	if err := seedRoles(); err != nil {
		log.Errorf("Failed to seed roles: %v", err)
		return err
	}

	log.Info("Migrations completed successfully")
	return nil
}

// seedRoles 幂等写入四个内置角色。
// 角色名冲突时刷新描述和 rank，保证代码升级后库里的定义跟着更新。
func seedRoles() error {
	roles := model.SeedRoles()
	return DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"name_ar", "description", "rank"}),
	}).Create(&roles).Error
}
