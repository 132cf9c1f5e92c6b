package handler

import (
	"net/http"

	"orgreport/internal/service"
	"orgreport/pkg/log"

	"github.com/gin-gonic/gin"
)

// DepartmentHandler 负责部门层级管理接口。
type DepartmentHandler struct {
	deptService      service.DepartmentService
	hierarchyService service.HierarchyService
}

func NewDepartmentHandler(deptService service.DepartmentService, hierarchyService service.HierarchyService) *DepartmentHandler {
	return &DepartmentHandler{deptService: deptService, hierarchyService: hierarchyService}
}

// CreateDepartmentRequest 是创建部门的请求体。
// ParentID 为空表示创建根部门（level 0）。
type CreateDepartmentRequest struct {
	Name        string `json:"name" binding:"required"`
	NameEn      string `json:"name_en"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
}

// Create 创建部门。层级由父部门推导，不接受外部指定。
func (h *DepartmentHandler) Create(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}

	var req CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	dept, err := h.deptService.Create(actor.ID, req.Name, req.NameEn, req.Description, req.ParentID)
	if err != nil {
		log.Warnf("DepartmentHandler.Create: failed to create department %q: %v", req.Name, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Department created successfully",
		"data":    dept,
	})
}

// List 返回部门平铺列表，?active_only=true 时滤掉停用部门。
func (h *DepartmentHandler) List(c *gin.Context) {
	activeOnly := c.Query("active_only") == "true"
	depts, err := h.deptService.List(activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Departments retrieved successfully",
		"data":    depts,
	})
}

// Get 返回单个部门。
func (h *DepartmentHandler) Get(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	dept, err := h.deptService.FindByID(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Department retrieved successfully",
		"data":    dept,
	})
}

// GetTree 返回完整的部门树。
func (h *DepartmentHandler) GetTree(c *gin.Context) {
	tree, err := h.hierarchyService.Tree()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Department tree retrieved successfully",
		"data":    tree,
	})
}

// GetSubtree 返回某部门及其全部后代的 ID 列表。
func (h *DepartmentHandler) GetSubtree(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	ids, err := h.hierarchyService.Subtree(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Department subtree retrieved successfully",
		"data":    ids,
	})
}

// Deactivate 停用部门。历史报告和子部门不受影响。
func (h *DepartmentHandler) Deactivate(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.deptService.Deactivate(actor.ID, id); err != nil {
		log.Warnf("DepartmentHandler.Deactivate: failed for department %d: %v", id, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Department deactivated successfully",
	})
}
