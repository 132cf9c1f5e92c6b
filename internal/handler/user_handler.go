package handler

import (
	"net/http"
	"time"

	"orgreport/internal/model"
	"orgreport/internal/service"
	"orgreport/pkg/log"

	"github.com/gin-gonic/gin"
)

// UserHandler 负责用户与角色指派管理接口。
type UserHandler struct {
	userService service.UserService
	roleService service.RoleService
}

func NewUserHandler(userService service.UserService, roleService service.RoleService) *UserHandler {
	return &UserHandler{userService: userService, roleService: roleService}
}

// RegisterRequest 是用户注册（通常由机器人端转发）的请求体。
// UserID 是外部 IM 分配的 64 位 ID，不在本系统内生成。
type RegisterRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	Username  string `json:"username"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Register 注册新用户或刷新已有用户资料。
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	user, err := h.userService.Register(req.UserID, req.Username, req.FirstName, req.LastName, req.Email, req.Phone)
	if err != nil {
		log.Warnf("UserHandler.Register: failed to register user %d: %v", req.UserID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "User registered successfully",
		"data":    user,
	})
}

// List 返回用户列表，?active_only=true 时只返回激活用户。
func (h *UserHandler) List(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}

	activeOnly := c.Query("active_only") == "true"
	users, err := h.userService.List(actor.ID, activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Users retrieved successfully",
		"data":    users,
	})
}

// SetActiveRequest 是启停用户的请求体。
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetActive 启用或停用用户。
func (h *UserHandler) SetActive(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}
	userID, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	if err := h.userService.SetActive(actor.ID, userID, *req.IsActive); err != nil {
		log.Warnf("UserHandler.SetActive: failed for user %d: %v", userID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "User updated successfully",
	})
}

// AssignRoleRequest 是指派角色的请求体。
// DepartmentID 为空仅对 admin 角色合法（全局管理员）。
// ExpiresAt 可选，RFC3339 格式，过期后指派自动失效。
type AssignRoleRequest struct {
	Role         string  `json:"role" binding:"required"`
	DepartmentID *uint   `json:"department_id"`
	ExpiresAt    *string `json:"expires_at"`
}

// AssignRole 给用户指派角色。
func (h *UserHandler) AssignRole(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}
	userID, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil && *req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "Invalid expires_at, want RFC3339 timestamp",
			})
			return
		}
		expiresAt = &t
	}

	if err := h.roleService.Assign(actor.ID, userID, req.Role, req.DepartmentID, expiresAt); err != nil {
		log.Warnf("UserHandler.AssignRole: failed for user %d role %q: %v", userID, req.Role, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Role assigned successfully",
	})
}

// RevokeRoleRequest 是吊销角色的请求体。
type RevokeRoleRequest struct {
	Role         string `json:"role" binding:"required"`
	DepartmentID *uint  `json:"department_id"`
}

// RevokeRole 吊销用户在某个部门范围内的角色。吊销不存在的指派不是错误。
func (h *UserHandler) RevokeRole(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}
	userID, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	var req RevokeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	if err := h.roleService.Revoke(actor.ID, userID, req.Role, req.DepartmentID); err != nil {
		log.Warnf("UserHandler.RevokeRole: failed for user %d role %q: %v", userID, req.Role, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Role revoked successfully",
	})
}

// ListRoles 返回用户当前的有效角色指派（过期和停用的不在列）。
func (h *UserHandler) ListRoles(c *gin.Context) {
	userID, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	assignments, err := h.roleService.EffectiveAssignments(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	// 每条指派附带角色的静态能力集，前端据此渲染"我的权限"。
	items := make([]gin.H, 0, len(assignments))
	for _, a := range assignments {
		items = append(items, gin.H{
			"assignment":   a,
			"capabilities": model.RoleCapabilities(a.RoleName),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Role assignments retrieved successfully",
		"data":    items,
	})
}
