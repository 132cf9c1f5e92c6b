package service

import (
	"errors"
	"fmt"
	"strings"

	"orgreport/internal/model"
	"orgreport/internal/repository"

	"gorm.io/gorm"
)

// DepartmentService 封装部门的写操作与单点查询。
// 关键规则：
// 1. Name 全局唯一（区分大小写），重名返回 ErrDepartmentExists。
// 2. Level 恒等于父部门 Level+1（无父则为 0），在创建时计算并缓存。
// 3. 部门只停用不删除，停用不级联子部门。
// 4. 所有写操作先过访问控制器，拒绝时不产生任何副作用。
// 树的遍历查询见 HierarchyService。
type DepartmentService interface {
	Create(actorID int64, name, nameEn, description string, parentID *uint) (*model.Department, error)
	FindByID(id uint) (*model.Department, error)
	List(activeOnly bool) ([]model.Department, error)
	Deactivate(actorID int64, departmentID uint) error
}

type departmentService struct {
	deptRepo  repository.DepartmentRepository
	evaluator AccessEvaluator
	audit     AuditRecorder
}

func NewDepartmentService(deptRepo repository.DepartmentRepository, evaluator AccessEvaluator, audit AuditRecorder) DepartmentService {
	return &departmentService{deptRepo: deptRepo, evaluator: evaluator, audit: audit}
}

func (s *departmentService) Create(actorID int64, name, nameEn, description string, parentID *uint) (*model.Department, error) {
	if s.deptRepo == nil || s.evaluator == nil {
		return nil, ErrInternal
	}

	name = strings.TrimSpace(name)
	nameEn = strings.TrimSpace(nameEn)
	if name == "" {
		return nil, ErrInvalidInput
	}

	if err := s.requireManageDepartments(actorID, parentID); err != nil {
		return nil, err
	}

	// 先查重名，避免数据库唯一键报错直接外泄。
	if _, err := s.deptRepo.FindByName(name); err == nil {
		return nil, ErrDepartmentExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 指定父部门时，父部门必须存在且处于激活状态，Level 取父 Level+1。
	level := 0
	if parentID != nil {
		parent, err := s.deptRepo.FindByID(*parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDepartmentNotFound
			}
			return nil, err
		}
		if !parent.IsActive {
			return nil, ErrDepartmentNotFound
		}
		level = parent.Level + 1
	}

	dept := &model.Department{
		Name:        name,
		NameEn:      nameEn,
		Description: description,
		ParentID:    parentID,
		Level:       level,
		IsActive:    true,
	}
	if err := s.deptRepo.Create(dept); err != nil {
		return nil, err
	}

	s.audit.Record(actorID, "create_department", "department", dept.ID, "", fmt.Sprintf("name=%s level=%d", dept.Name, dept.Level))
	return dept, nil
}

func (s *departmentService) FindByID(id uint) (*model.Department, error) {
	if s.deptRepo == nil {
		return nil, ErrInternal
	}
	dept, err := s.deptRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		return nil, err
	}
	return dept, nil
}

func (s *departmentService) List(activeOnly bool) ([]model.Department, error) {
	if s.deptRepo == nil {
		return nil, ErrInternal
	}
	return s.deptRepo.FindAll(activeOnly)
}

func (s *departmentService) Deactivate(actorID int64, departmentID uint) error {
	if s.deptRepo == nil || s.evaluator == nil {
		return ErrInternal
	}

	if err := s.requireManageDepartments(actorID, &departmentID); err != nil {
		return err
	}

	if err := s.deptRepo.Deactivate(departmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDepartmentNotFound
		}
		return err
	}

	s.audit.Record(actorID, "deactivate_department", "department", departmentID, "is_active=true", "is_active=false")
	return nil
}

// requireManageDepartments 校验操作者持有部门管理能力。
// 创建根部门没有目标部门，此时只有全局 admin 能通过（target=0）。
func (s *departmentService) requireManageDepartments(actorID int64, departmentID *uint) error {
	target := uint(0)
	if departmentID != nil {
		target = *departmentID
	}
	allowed, err := s.evaluator.CanAct(actorID, model.CapManageDepartments, target)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrPermissionDenied
	}
	return nil
}
