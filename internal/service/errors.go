package service

import "errors"

// 哨兵错误：对外统一语义，隐藏底层实现细节。
// Handler 通过 errors.Is 映射到 HTTP 状态码，前端据此区分
// "可以重试"（内部错误）和"不允许这么做"（权限/校验/状态机错误）。
var (
	// ErrInvalidInput 入参缺失或格式不合法
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials 用户名或密码错误（登录时统一返回，防止用户枚举）
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrUserInactive 用户已停用
	ErrUserInactive = errors.New("user is inactive")
	// ErrDepartmentNotFound 部门不存在或已停用
	ErrDepartmentNotFound = errors.New("department not found")
	// ErrDepartmentExists 部门名重复（Name 全局唯一、区分大小写）
	ErrDepartmentExists = errors.New("department already exists")
	// ErrHierarchyTooDeep 部门层级超出上限，视为数据损坏（可能成环），拒绝继续遍历
	ErrHierarchyTooDeep = errors.New("department hierarchy too deep")
	// ErrUnknownRole 角色名不在内置角色表内
	ErrUnknownRole = errors.New("unknown role")
	// ErrInvalidScope 角色需要部门作用域但未提供（admin 以外的角色都需要）
	ErrInvalidScope = errors.New("role requires a department scope")
	// ErrReportNotFound 报告不存在
	ErrReportNotFound = errors.New("report not found")
	// ErrPermissionDenied 权限不足。对外永远只给统一的拒绝话术，
	// 不解释缺了哪个能力，避免向未授权用户暴露受限命令的存在。
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidTransition 报告状态机不允许的转移
	ErrInvalidTransition = errors.New("invalid report status transition")
	// ErrNoEligibleReports 聚合窗口内没有可聚合的来源报告
	ErrNoEligibleReports = errors.New("no eligible reports to aggregate")
	// ErrInternal 内部错误（对外不暴露细节）
	ErrInternal = errors.New("internal server error")
)
