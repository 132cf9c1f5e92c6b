package model

import "time"

// Department 对应数据库中 departments 表，表示组织架构中的一个部门。
// 部门是树形结构，通过 ParentID 指向父部门实现层级关系。
// 约束：
//   - Name 全局唯一（区分大小写）。
//   - Level 缓存节点深度：根部门为 0，否则等于父部门 Level+1。
//   - 部门永远不做物理删除，只通过 IsActive 停用；停用不级联到子部门。
type Department struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null;unique" json:"name"`
	NameEn      string    `gorm:"type:varchar(255)" json:"nameEn"`
	Description string    `gorm:"type:varchar(512)" json:"description"`
	ParentID    *uint     `gorm:"index" json:"parentId"`
	Level       int       `gorm:"not null;default:0" json:"level"`
	ManagerID   *int64    `json:"managerId"`
	IsActive    bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定 GORM 使用的表名
func (Department) TableName() string {
	return "departments"
}

// DepartmentNode 是部门的树形节点，用于构建前端需要的树形结构响应。
// 与 Department（数据库模型）的区别：
//   - 不含审计字段
//   - 增加了 Children 字段，用于嵌套子节点
type DepartmentNode struct {
	ID       uint              `json:"id"`
	Name     string            `json:"name"`
	NameEn   string            `json:"nameEn"`
	ParentID *uint             `json:"parentId"`
	Level    int               `json:"level"`
	IsActive bool              `json:"isActive"`
	Children []*DepartmentNode `json:"children"`
}
