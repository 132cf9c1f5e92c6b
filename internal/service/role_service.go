package service

import (
	"errors"
	"fmt"
	"time"

	"orgreport/internal/model"
	"orgreport/internal/repository"

	"gorm.io/gorm"
)

// RoleService 封装角色指派领域逻辑。
// 关键规则：
// 1. 角色集合固定，未知角色名返回 ErrUnknownRole。
// 2. admin 以外的角色必须绑定部门（ErrInvalidScope）。
// 3. 同一 (user, role, department) 最多一条激活指派：重复授予复活旧行而不是插新行。
// 4. 撤销幂等：对已停用的指派再撤销是空操作，不报错。
// 5. 授予人必须持有 manage_users 能力；非 admin 授予人不得授予不低于自身等级的角色。
type RoleService interface {
	Assign(assignerID, userID int64, roleName string, departmentID *uint, expiresAt *time.Time) error
	Revoke(actorID, userID int64, roleName string, departmentID *uint) error
	// EffectiveAssignments 返回用户全部激活且未过期的指派，
	// 附带解析好的角色等级与部门。过期在读取时判定，不依赖显式撤销。
	EffectiveAssignments(userID int64) ([]model.EffectiveAssignment, error)
}

type roleService struct {
	roleRepo  repository.RoleRepository
	userRepo  repository.UserRepository
	deptRepo  repository.DepartmentRepository
	evaluator AccessEvaluator
	audit     AuditRecorder
	now       func() time.Time
}

func NewRoleService(roleRepo repository.RoleRepository, userRepo repository.UserRepository,
	deptRepo repository.DepartmentRepository, evaluator AccessEvaluator, audit AuditRecorder) RoleService {
	return &roleService{
		roleRepo:  roleRepo,
		userRepo:  userRepo,
		deptRepo:  deptRepo,
		evaluator: evaluator,
		audit:     audit,
		now:       time.Now,
	}
}

func (s *roleService) Assign(assignerID, userID int64, roleName string, departmentID *uint, expiresAt *time.Time) error {
	if s.roleRepo == nil || s.userRepo == nil || s.evaluator == nil {
		return ErrInternal
	}

	role, err := s.roleRepo.FindRoleByName(roleName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownRole
		}
		return err
	}

	// admin 的作用域是全局，其它角色必须落在某个部门。
	if role.Name != model.RoleAdmin && departmentID == nil {
		return ErrInvalidScope
	}

	if departmentID != nil {
		dept, err := s.deptRepo.FindByID(*departmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDepartmentNotFound
			}
			return err
		}
		if !dept.IsActive {
			return ErrDepartmentNotFound
		}
	}

	// 目标用户必须已注册。
	if _, err := s.userRepo.FindByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.requireAssignRight(assignerID, role, departmentID); err != nil {
		return err
	}

	// 已有同键指派：激活的视为幂等成功，停用的复活。
	existing, err := s.roleRepo.FindAssignment(userID, role.ID, departmentID)
	switch {
	case err == nil:
		if existing.IsActive && !existing.Expired(s.now()) {
			return nil
		}
		if err := s.roleRepo.Reactivate(existing.ID, assignerID); err != nil {
			return err
		}
		s.audit.Record(assignerID, "assign_role", "user_role", existing.ID,
			"is_active=false", fmt.Sprintf("user=%d role=%s", userID, role.Name))
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	a := &model.RoleAssignment{
		UserID:       userID,
		RoleID:       role.ID,
		DepartmentID: departmentID,
		IsActive:     true,
		AssignedBy:   assignerID,
		ExpiresAt:    expiresAt,
	}
	if err := s.roleRepo.CreateAssignment(a); err != nil {
		return err
	}

	s.audit.Record(assignerID, "assign_role", "user_role", a.ID,
		"", fmt.Sprintf("user=%d role=%s", userID, role.Name))
	return nil
}

func (s *roleService) Revoke(actorID, userID int64, roleName string, departmentID *uint) error {
	if s.roleRepo == nil || s.evaluator == nil {
		return ErrInternal
	}

	role, err := s.roleRepo.FindRoleByName(roleName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownRole
		}
		return err
	}

	if err := s.requireAssignRight(actorID, role, departmentID); err != nil {
		return err
	}

	affected, err := s.roleRepo.DeactivateMatching(userID, role.ID, departmentID)
	if err != nil {
		return err
	}
	// 没有匹配的激活指派也算成功：撤销是幂等操作。
	if affected > 0 {
		s.audit.Record(actorID, "revoke_role", "user_role", 0,
			fmt.Sprintf("user=%d role=%s", userID, role.Name), "is_active=false")
	}
	return nil
}

// EffectiveAssignments 的解析逻辑在访问控制器里（它是求值的第一步），这里只做转发。
func (s *roleService) EffectiveAssignments(userID int64) ([]model.EffectiveAssignment, error) {
	if s.evaluator == nil {
		return nil, ErrInternal
	}
	return s.evaluator.EffectiveAssignments(userID)
}

// requireAssignRight 校验授予/撤销权：
//  1. 操作者要有 manage_users 能力（部门指派看目标部门，全局指派只有 admin 过得了）。
//  2. 非 admin 操作者不得授予等级不低于自己的角色；admin 不受限，
//     否则系统里将无法再产生第二个 admin。
func (s *roleService) requireAssignRight(actorID int64, role *model.Role, departmentID *uint) error {
	target := uint(0)
	if departmentID != nil {
		target = *departmentID
	}
	allowed, err := s.evaluator.CanAct(actorID, model.CapManageUsers, target)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrPermissionDenied
	}

	actorRank, isAdmin, err := s.evaluator.HighestRank(actorID)
	if err != nil {
		return err
	}
	if !isAdmin && role.Rank >= actorRank {
		return ErrPermissionDenied
	}
	return nil
}
