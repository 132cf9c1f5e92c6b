package repository

import (
	"fmt"
	"orgreport/internal/model"

	"gorm.io/gorm"
)

// RoleRepository 定义角色与角色指派的持久化操作接口。
// 角色表在迁移时种入固定四行；user_roles 的行只增不删，
// 撤销通过置 IsActive=false 记录，重复授予时复活旧行以避免同键重复。
type RoleRepository interface {
	FindRoleByName(name string) (*model.Role, error)
	FindRoleByID(id uint) (*model.Role, error)

	CreateAssignment(a *model.RoleAssignment) error
	// FindAssignment 查找 (user, role, department) 的指派行，包含已停用的。
	// departmentID 为 nil 时匹配 department_id IS NULL（全局指派）。
	FindAssignment(userID int64, roleID uint, departmentID *uint) (*model.RoleAssignment, error)
	// Reactivate 复活一条已停用的指派并更新授予人。
	Reactivate(assignmentID uint, assignedBy int64) error
	// DeactivateMatching 停用匹配的指派行，返回受影响行数。
	// 已停用的行不计入，因此对撤销操作天然幂等。
	DeactivateMatching(userID int64, roleID uint, departmentID *uint) (int64, error)
	// FindActiveByUser 返回用户全部 IsActive 的指派行（过期判断在 service 层做）。
	FindActiveByUser(userID int64) ([]model.RoleAssignment, error)
}

// roleRepository 是 RoleRepository 接口的 GORM 实现。
type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) FindRoleByName(name string) (*model.Role, error) {
	if name == "" {
		return nil, fmt.Errorf("role name is required")
	}
	var role model.Role
	if err := r.db.Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindRoleByID(id uint) (*model.Role, error) {
	var role model.Role
	if err := r.db.First(&role, id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) CreateAssignment(a *model.RoleAssignment) error {
	if a == nil {
		return fmt.Errorf("assignment is nil")
	}
	return r.db.Create(a).Error
}

func (r *roleRepository) FindAssignment(userID int64, roleID uint, departmentID *uint) (*model.RoleAssignment, error) {
	tx := r.db.Where("user_id = ? AND role_id = ?", userID, roleID)
	if departmentID == nil {
		tx = tx.Where("department_id IS NULL")
	} else {
		tx = tx.Where("department_id = ?", *departmentID)
	}

	var a model.RoleAssignment
	if err := tx.First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *roleRepository) Reactivate(assignmentID uint, assignedBy int64) error {
	tx := r.db.Model(&model.RoleAssignment{}).
		Where("id = ?", assignmentID).
		Updates(map[string]interface{}{
			"is_active":   true,
			"assigned_by": assignedBy,
			"expires_at":  nil,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *roleRepository) DeactivateMatching(userID int64, roleID uint, departmentID *uint) (int64, error) {
	tx := r.db.Model(&model.RoleAssignment{}).
		Where("user_id = ? AND role_id = ? AND is_active = ?", userID, roleID, true)
	if departmentID == nil {
		tx = tx.Where("department_id IS NULL")
	} else {
		tx = tx.Where("department_id = ?", *departmentID)
	}

	tx = tx.Update("is_active", false)
	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

func (r *roleRepository) FindActiveByUser(userID int64) ([]model.RoleAssignment, error) {
	var assignments []model.RoleAssignment
	if err := r.db.
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}
