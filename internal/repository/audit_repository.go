package repository

import (
	"fmt"
	"orgreport/internal/model"

	"gorm.io/gorm"
)

// AuditRepository 定义审计日志的持久化操作接口。
// 只有追加和按时间倒序读取两个操作，没有更新和删除。
type AuditRepository interface {
	Create(entry *model.AuditEntry) error
	FindRecent(limit int) ([]model.AuditEntry, error)
}

// auditRepository 是 AuditRepository 接口的 GORM 实现。
type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(entry *model.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("audit entry is nil")
	}
	if entry.Action == "" {
		return fmt.Errorf("audit action is required")
	}
	return r.db.Create(entry).Error
}

func (r *auditRepository) FindRecent(limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []model.AuditEntry
	if err := r.db.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
