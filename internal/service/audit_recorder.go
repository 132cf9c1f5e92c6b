package service

import (
	"orgreport/internal/model"
	"orgreport/internal/repository"
	"orgreport/pkg/log"
)

// AuditRecorder 把状态变更动作追加到审计日志。
// 所有写操作的 service 在变更成功后调用 Record；
// 审计写入失败只记日志、不向上传播，绝不让主操作因为审计失败而失败。
type AuditRecorder interface {
	Record(userID int64, action, entityType string, entityID uint, oldValue, newValue string)
	Recent(limit int) ([]model.AuditEntry, error)
}

type auditRecorder struct {
	auditRepo repository.AuditRepository
}

func NewAuditRecorder(auditRepo repository.AuditRepository) AuditRecorder {
	return &auditRecorder{auditRepo: auditRepo}
}

func (a *auditRecorder) Record(userID int64, action, entityType string, entityID uint, oldValue, newValue string) {
	if a.auditRepo == nil {
		return
	}
	entry := &model.AuditEntry{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if err := a.auditRepo.Create(entry); err != nil {
		log.Warnf("audit: failed to record %s on %s/%d: %v", action, entityType, entityID, err)
	}
}

func (a *auditRecorder) Recent(limit int) ([]model.AuditEntry, error) {
	if a.auditRepo == nil {
		return nil, ErrInternal
	}
	return a.auditRepo.FindRecent(limit)
}
