package model

import "time"

// 内置角色名。角色集合固定，迁移时种入，运行期不增删。
const (
	RoleEmployee     = "employee"
	RoleManager      = "manager"
	RoleUpperManager = "upper_manager"
	RoleAdmin        = "admin"
)

// Capability 表示角色静态权限表中的一个可执行动作。
type Capability string

const (
	CapCreateReport      Capability = "create_report"
	CapViewOwn           Capability = "view_own"
	CapViewDepartment    Capability = "view_department"
	CapViewSubtree       Capability = "view_subtree"
	CapApprove           Capability = "approve"
	CapCreateCumulative  Capability = "create_cumulative"
	CapManageUsers       Capability = "manage_users"
	CapManageDepartments Capability = "manage_departments"
	CapViewAll           Capability = "view_all"
)

// Role 对应数据库中 roles 表。
// Rank 是严格有序的数值等级，用于"取最高角色"与"不得授予不低于自身的角色"两条规则。
// 权限能力集不落库：角色到能力的映射是纯静态表，见 roleCapabilities。
type Role struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(64);not null;unique" json:"name"`
	NameAr      string    `gorm:"type:varchar(128)" json:"nameAr"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	Rank        int       `gorm:"not null;default:0" json:"rank"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定 GORM 使用的表名
func (Role) TableName() string {
	return "roles"
}

// roleCapabilities 是角色到能力集的静态映射。
// 用查表而不是角色类型间继承：四个角色的能力集各自独立列全，一眼可查。
var roleCapabilities = map[string]map[Capability]bool{
	RoleEmployee: {
		CapCreateReport: true,
		CapViewOwn:      true,
	},
	RoleManager: {
		CapCreateReport:   true,
		CapViewOwn:        true,
		CapViewDepartment: true,
		CapApprove:        true,
	},
	RoleUpperManager: {
		CapCreateReport:     true,
		CapViewOwn:          true,
		CapViewDepartment:   true,
		CapViewSubtree:      true,
		CapApprove:          true,
		CapCreateCumulative: true,
	},
	RoleAdmin: {
		CapCreateReport:      true,
		CapViewOwn:           true,
		CapViewDepartment:    true,
		CapViewSubtree:       true,
		CapApprove:           true,
		CapCreateCumulative:  true,
		CapManageUsers:       true,
		CapManageDepartments: true,
		CapViewAll:           true,
	},
}

// RoleHasCapability 查询角色静态权限表。未知角色名一律返回 false。
func RoleHasCapability(roleName string, cap Capability) bool {
	caps, ok := roleCapabilities[roleName]
	if !ok {
		return false
	}
	return caps[cap]
}

// RoleCapabilities 返回角色能力集的副本，供前端展示"我的权限"。
func RoleCapabilities(roleName string) []Capability {
	caps, ok := roleCapabilities[roleName]
	if !ok {
		return nil
	}
	out := make([]Capability, 0, len(caps))
	for c, enabled := range caps {
		if enabled {
			out = append(out, c)
		}
	}
	return out
}

// SeedRoles 返回迁移时种入的内置角色行。Rank 间隔取自原系统：10/50/70/99。
func SeedRoles() []Role {
	return []Role{
		{Name: RoleEmployee, NameAr: "موظف", Description: "Basic employee - can create and view own reports", Rank: 10},
		{Name: RoleManager, NameAr: "مدير", Description: "Department manager - can view and approve department reports", Rank: 50},
		{Name: RoleUpperManager, NameAr: "مدير أعلى", Description: "Upper management - can view subtree reports and create cumulative reports", Rank: 70},
		{Name: RoleAdmin, NameAr: "مسؤول النظام", Description: "System administrator - full access", Rank: 99},
	}
}

// RoleAssignment 对应数据库中 user_roles 表，把 (用户, 角色, 部门) 绑在一起。
// DepartmentID 只有 admin 允许为空（全局作用域）。
// 约束：同一 (user, role, department) 最多存在一条 IsActive 的记录；
// 撤销只置 IsActive=false，不删行，重新授予时复活旧行。
type RoleAssignment struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64      `gorm:"not null;index:idx_user_roles_user" json:"userId"`
	RoleID       uint       `gorm:"not null" json:"roleId"`
	DepartmentID *uint      `gorm:"index" json:"departmentId"`
	IsActive     bool       `gorm:"not null;default:true" json:"isActive"`
	AssignedBy   int64      `json:"assignedBy"`
	AssignedAt   time.Time  `gorm:"autoCreateTime" json:"assignedAt"`
	ExpiresAt    *time.Time `json:"expiresAt"`
}

// TableName 指定 GORM 使用的表名
func (RoleAssignment) TableName() string {
	return "user_roles"
}

// Expired 判断指派在 now 时刻是否已过期。过期即视为不活跃，无需显式撤销。
func (a *RoleAssignment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// EffectiveAssignment 是查询联结后的有效指派视图：
// 指派行 + 解析出的角色名、角色等级与部门。Department 为 nil 表示全局（admin）。
type EffectiveAssignment struct {
	AssignmentID uint        `json:"assignmentId"`
	UserID       int64       `json:"userId"`
	RoleName     string      `json:"roleName"`
	RoleRank     int         `json:"roleRank"`
	Department   *Department `json:"department"`
	ExpiresAt    *time.Time  `json:"expiresAt"`
}
