package handler

import (
	"net/http"
	"strconv"

	"orgreport/internal/service"

	"github.com/gin-gonic/gin"
)

// AuditHandler 负责审计日志的只读查询接口。
type AuditHandler struct {
	audit     service.AuditRecorder
	evaluator service.AccessEvaluator
}

func NewAuditHandler(audit service.AuditRecorder, evaluator service.AccessEvaluator) *AuditHandler {
	return &AuditHandler{audit: audit, evaluator: evaluator}
}

// Recent 返回最近的审计记录，仅全局管理员可见。
func (h *AuditHandler) Recent(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}

	_, isAdmin, err := h.evaluator.HighestRank(actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !isAdmin {
		respondError(c, service.ErrPermissionDenied)
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	entries, err := h.audit.Recent(limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Audit entries retrieved successfully",
		"data":    entries,
	})
}
