package service

import (
	"errors"
	"time"

	"orgreport/internal/model"
	"orgreport/internal/repository"

	"gorm.io/gorm"
)

// AccessEvaluator 是访问控制求值器：给定用户和目标部门，
// 算出用户对该部门的最高有效权限并回答"能不能做某个动作"。
// 拒绝是取值不是错误——CanAct 返回 false 时调用方不得执行副作用操作，
// 但这不是一条 error 路径。
//
// 作用域规则（向上生效）：
//   - 指派部门 == 目标部门：该角色的全部能力生效；
//   - 指派部门是目标部门的真祖先：只有能力集含 view_subtree 的角色
//     （upper_manager、admin）才对子树生效，manager 管不到下级部门；
//   - admin 且不绑部门：全局生效。
type AccessEvaluator interface {
	CanAct(userID int64, capability model.Capability, departmentID uint) (bool, error)
	// EffectiveAssignments 返回用户全部激活且未过期的指派（过期在读取时判定）。
	EffectiveAssignments(userID int64) ([]model.EffectiveAssignment, error)
	// AccessibleDepartments 返回用户可以查看报告的部门 id 集合。
	AccessibleDepartments(userID int64) ([]uint, error)
	// HighestRank 返回用户当前最高角色等级，以及是否持有全局 admin。
	// 没有任何指派时等级为 0。
	HighestRank(userID int64) (rank int, isAdmin bool, err error)
}

type accessEvaluator struct {
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	deptRepo  repository.DepartmentRepository
	hierarchy HierarchyService
	now       func() time.Time
}

func NewAccessEvaluator(userRepo repository.UserRepository, roleRepo repository.RoleRepository,
	deptRepo repository.DepartmentRepository, hierarchy HierarchyService) AccessEvaluator {
	return &accessEvaluator{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		deptRepo:  deptRepo,
		hierarchy: hierarchy,
		now:       time.Now,
	}
}

// CanAct 求值流程：
//  1. 用户不存在或已停用 → 拒绝（未注册的请求者永远被拒）。
//  2. 持有全局 admin 指派 → 放行。
//  3. departmentID 为 0 表示没有目标部门的全局动作（如创建根部门），
//     走到这里说明没有全局 admin → 拒绝。
//  4. 在"部门相等"或"祖先且角色可下探"的指派中取最高等级者，
//     其静态能力集含 capability 才放行。
func (e *accessEvaluator) CanAct(userID int64, capability model.Capability, departmentID uint) (bool, error) {
	user, err := e.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if !user.IsActive {
		return false, nil
	}

	assignments, err := e.EffectiveAssignments(userID)
	if err != nil {
		return false, err
	}
	if len(assignments) == 0 {
		return false, nil
	}

	for _, a := range assignments {
		if a.RoleName == model.RoleAdmin && a.Department == nil {
			return true, nil
		}
	}

	if departmentID == 0 {
		return false, nil
	}

	// 目标部门的祖先集合（不含自身，自身用相等判断）。
	ancestors, err := e.hierarchy.Ancestors(departmentID)
	if err != nil {
		if errors.Is(err, ErrDepartmentNotFound) {
			return false, nil
		}
		return false, err
	}
	ancestorSet := make(map[uint]bool, len(ancestors))
	for _, d := range ancestors[1:] {
		ancestorSet[d.ID] = true
	}

	best := ""
	bestRank := -1
	for _, a := range assignments {
		if a.Department == nil {
			continue // 全局指派只可能是 admin，上面已经处理
		}
		eligible := a.Department.ID == departmentID ||
			(ancestorSet[a.Department.ID] && model.RoleHasCapability(a.RoleName, model.CapViewSubtree))
		if !eligible {
			continue
		}
		if a.RoleRank > bestRank {
			bestRank = a.RoleRank
			best = a.RoleName
		}
	}
	if best == "" {
		return false, nil
	}
	return model.RoleHasCapability(best, capability), nil
}

func (e *accessEvaluator) EffectiveAssignments(userID int64) ([]model.EffectiveAssignment, error) {
	rows, err := e.roleRepo.FindActiveByUser(userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	result := make([]model.EffectiveAssignment, 0, len(rows))
	for _, row := range rows {
		// 过期指派在读取时过滤，等价于已撤销，无需后台清理任务。
		if row.Expired(now) {
			continue
		}

		role, err := e.roleRepo.FindRoleByID(row.RoleID)
		if err != nil {
			// 角色表是种子数据，查不到说明数据损坏；跳过该行不让整个求值失败。
			continue
		}

		var dept *model.Department
		if row.DepartmentID != nil {
			d, err := e.deptRepo.FindByID(*row.DepartmentID)
			if err != nil {
				continue
			}
			dept = d
		}

		result = append(result, model.EffectiveAssignment{
			AssignmentID: row.ID,
			UserID:       row.UserID,
			RoleName:     role.Name,
			RoleRank:     role.Rank,
			Department:   dept,
			ExpiresAt:    row.ExpiresAt,
		})
	}
	return result, nil
}

// AccessibleDepartments 汇总用户能看报告的部门：
// admin（全局）→ 全部；能力含 view_subtree 的指派 → 该部门子树；
// 能力含 view_department 的指派 → 该部门自身。employee 没有部门级视野。
func (e *accessEvaluator) AccessibleDepartments(userID int64) ([]uint, error) {
	user, err := e.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []uint{}, nil
		}
		return nil, err
	}
	if !user.IsActive {
		return []uint{}, nil
	}

	assignments, err := e.EffectiveAssignments(userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool)
	result := make([]uint, 0)
	add := func(id uint) {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}

	for _, a := range assignments {
		if a.RoleName == model.RoleAdmin && a.Department == nil {
			all, err := e.deptRepo.FindAll(false)
			if err != nil {
				return nil, err
			}
			for _, d := range all {
				add(d.ID)
			}
			return result, nil
		}

		if a.Department == nil {
			continue
		}
		switch {
		case model.RoleHasCapability(a.RoleName, model.CapViewSubtree):
			subtree, err := e.hierarchy.Subtree(a.Department.ID)
			if err != nil {
				return nil, err
			}
			for _, id := range subtree {
				add(id)
			}
		case model.RoleHasCapability(a.RoleName, model.CapViewDepartment):
			add(a.Department.ID)
		}
	}
	return result, nil
}

func (e *accessEvaluator) HighestRank(userID int64) (int, bool, error) {
	assignments, err := e.EffectiveAssignments(userID)
	if err != nil {
		return 0, false, err
	}
	rank := 0
	isAdmin := false
	for _, a := range assignments {
		if a.RoleRank > rank {
			rank = a.RoleRank
		}
		if a.RoleName == model.RoleAdmin && a.Department == nil {
			isAdmin = true
		}
	}
	return rank, isAdmin, nil
}
