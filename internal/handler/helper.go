package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"orgreport/internal/model"
	"orgreport/internal/service"

	"github.com/gin-gonic/gin"
)

// mapServiceError 把 Service 层哨兵错误转换为 HTTP 状态码和对外消息。
// 统一映射的价值：
// 1. Handler 不必散落大量 if/else 判断。
// 2. 对外返回口径稳定，避免泄露内部实现细节。
func mapServiceError(err error) (httpStatus int, message string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request parameters"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, service.ErrUserInactive):
		return http.StatusForbidden, "User is deactivated"
	case errors.Is(err, service.ErrDepartmentNotFound):
		return http.StatusNotFound, "Department not found"
	case errors.Is(err, service.ErrDepartmentExists):
		return http.StatusConflict, "Department already exists"
	case errors.Is(err, service.ErrHierarchyTooDeep):
		return http.StatusUnprocessableEntity, "Department hierarchy too deep"
	case errors.Is(err, service.ErrUnknownRole):
		return http.StatusBadRequest, "Unknown role"
	case errors.Is(err, service.ErrInvalidScope):
		return http.StatusBadRequest, "Role assignment requires a department scope"
	case errors.Is(err, service.ErrReportNotFound):
		return http.StatusNotFound, "Report not found"
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden, "Permission denied"
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, "Invalid report status transition"
	case errors.Is(err, service.ErrNoEligibleReports):
		return http.StatusUnprocessableEntity, "No eligible reports in the selected period"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondError 统一的错误响应写法。
func respondError(c *gin.Context, err error) {
	status, msg := mapServiceError(err)
	c.JSON(status, gin.H{
		"code":    status,
		"message": msg,
	})
}

// extractBearerToken 从 Authorization 请求头提取 Bearer Token。
// 期望格式：Authorization: Bearer <token>
func extractBearerToken(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	if strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("empty token")
	}
	return parts[1], nil
}

// getUserFromContext 从 Gin 上下文中读取 AuthMiddleware 注入的用户对象。
// 如果上下文异常，该函数会直接写错误响应并返回 false，调用方只需 `if !ok { return }`。
func getUserFromContext(c *gin.Context) (*model.User, bool) {
	userVal, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "User not found in context",
		})
		return nil, false
	}

	user, ok := userVal.(*model.User)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to get user profile",
		})
		return nil, false
	}
	return user, true
}

// parseUintParam 解析路径参数里的无符号整数 ID。
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid " + name + " parameter",
		})
		return 0, false
	}
	return uint(id), true
}

// parseInt64Param 解析路径参数里的用户 ID（外部 IM 的 64 位 ID）。
func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid " + name + " parameter",
		})
		return 0, false
	}
	return id, true
}
