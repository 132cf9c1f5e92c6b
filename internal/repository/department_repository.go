package repository

import (
	"fmt"
	"orgreport/internal/model"

	"gorm.io/gorm"
)

// DepartmentRepository 定义部门的持久化操作接口。
// 部门是树形结构，通过 ParentID 实现父子关系；
// 子树/祖先的遍历逻辑在 service 层，仓库只提供整表与按父查询。
type DepartmentRepository interface {
	Create(dept *model.Department) error
	FindByID(id uint) (*model.Department, error)
	// FindByName 按 Name 精确匹配（区分大小写），用于创建前的重名检查。
	FindByName(name string) (*model.Department, error)
	FindAll(activeOnly bool) ([]model.Department, error)
	// Deactivate 置 IsActive=false，目标不存在时返回 gorm.ErrRecordNotFound。
	// 对已停用的部门重复调用是幂等的成功。不级联子部门。
	Deactivate(id uint) error
}

// departmentRepository 是 DepartmentRepository 接口的 GORM 实现。
type departmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) Create(dept *model.Department) error {
	if dept == nil {
		return fmt.Errorf("department is nil")
	}
	if dept.Name == "" {
		return fmt.Errorf("department name is required")
	}
	return r.db.Create(dept).Error
}

func (r *departmentRepository) FindByID(id uint) (*model.Department, error) {
	var dept model.Department
	if err := r.db.First(&dept, id).Error; err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) FindByName(name string) (*model.Department, error) {
	if name == "" {
		return nil, fmt.Errorf("department name is required")
	}
	var dept model.Department
	// MySQL 默认排序规则不区分大小写，这里用 BINARY 强制精确匹配。
	if err := r.db.Where("BINARY name = ?", name).First(&dept).Error; err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) FindAll(activeOnly bool) ([]model.Department, error) {
	var depts []model.Department
	tx := r.db.Order("level ASC, name ASC")
	if activeOnly {
		tx = tx.Where("is_active = ?", true)
	}
	if err := tx.Find(&depts).Error; err != nil {
		return nil, err
	}
	return depts, nil
}

func (r *departmentRepository) Deactivate(id uint) error {
	tx := r.db.Model(&model.Department{}).
		Where("id = ?", id).
		Update("is_active", false)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		// MySQL 的 affected rows 只统计值真正变化的行，
		// 0 可能是"行不存在"也可能是"早已停用"，补一次存在性检查区分。
		var count int64
		if err := r.db.Model(&model.Department{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}
