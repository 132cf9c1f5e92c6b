package model

import "time"

// AuditEntry 对应数据库中 audit_log 表。
// 只追加：应用逻辑永远不更新、不删除审计行，核心业务也不读它，
// 仅管理后台有一个只读的最近记录列表。
type AuditEntry struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"index" json:"userId"`
	Action     string    `gorm:"type:varchar(64);not null" json:"action"`
	EntityType string    `gorm:"type:varchar(64)" json:"entityType"`
	EntityID   uint      `json:"entityId"`
	OldValue   string    `gorm:"type:text" json:"oldValue"`
	NewValue   string    `gorm:"type:text" json:"newValue"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName 指定 GORM 使用的表名
func (AuditEntry) TableName() string {
	return "audit_log"
}
