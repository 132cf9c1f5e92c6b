package handler

import (
	"net/http"
	"strconv"
	"time"

	"orgreport/internal/model"
	"orgreport/internal/service"
	"orgreport/pkg/log"

	"github.com/gin-gonic/gin"
)

// ReportHandler 负责报告生命周期接口：创建、提交、审批、归档、查询。
type ReportHandler struct {
	reportService      service.ReportService
	aggregationService service.AggregationService
}

func NewReportHandler(reportService service.ReportService, aggregationService service.AggregationService) *ReportHandler {
	return &ReportHandler{reportService: reportService, aggregationService: aggregationService}
}

// CreateReportRequest 是创建报告的请求体。
type CreateReportRequest struct {
	Title        string `json:"title" binding:"required"`
	Content      string `json:"content" binding:"required"`
	Type         string `json:"type" binding:"required"`
	Priority     string `json:"priority"`
	DepartmentID uint   `json:"department_id" binding:"required"`
}

// Create 创建草稿报告。
func (h *ReportHandler) Create(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}

	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	report, err := h.reportService.Create(actor.ID, req.Title, req.Content, req.Type, req.Priority, req.DepartmentID)
	if err != nil {
		log.Warnf("ReportHandler.Create: failed to create report: %v", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Report created successfully",
		"data":    report,
	})
}

// Submit 把草稿报告提交进入审批流。
func (h *ReportHandler) Submit(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.reportService.Submit(id, actor.ID); err != nil {
		log.Warnf("ReportHandler.Submit: failed for report %d: %v", id, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Report submitted successfully",
	})
}

// Resubmit 把被驳回的报告退回草稿，供提交人修改后重新提交。
func (h *ReportHandler) Resubmit(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.reportService.Resubmit(id, actor.ID); err != nil {
		log.Warnf("ReportHandler.Resubmit: failed for report %d: %v", id, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Report returned to draft successfully",
	})
}

// DecideRequest 是审批决定的请求体。
type DecideRequest struct {
	Decision string `json:"decision" binding:"required"` // approved | rejected
	Notes    string `json:"notes"`
}

// Decide 对报告做出批准或驳回的决定。
func (h *ReportHandler) Decide(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	if err := h.reportService.Decide(id, actor.ID, req.Decision, req.Notes); err != nil {
		log.Warnf("ReportHandler.Decide: failed for report %d: %v", id, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Decision recorded successfully",
	})
}

// Archive 归档处于终态的报告。
func (h *ReportHandler) Archive(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.reportService.Archive(id, actor.ID); err != nil {
		log.Warnf("ReportHandler.Archive: failed for report %d: %v", id, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Report archived successfully",
	})
}

// Get 返回单个报告，读权限在 Service 层裁决。
func (h *ReportHandler) Get(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	report, err := h.reportService.FindByID(id, actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	payload := gin.H{
		"code":    http.StatusOK,
		"message": "Report retrieved successfully",
		"data":    report,
	}
	// 累计报告附带来源连接，前端据此展示各来源报告的权重。
	if report.IsCumulative {
		links, err := h.reportService.SourceLinks(id, actor.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		payload["sources"] = links
	}
	c.JSON(http.StatusOK, payload)
}

// List 返回当前用户可见的报告。
// ?mine=true 只列自己提交的；?status= 按状态过滤；?limit= 限制条数。
func (h *ReportHandler) List(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}

	status := c.Query("status")
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var reports []model.Report
	var err error
	if c.Query("mine") == "true" {
		reports, err = h.reportService.ListOwn(actor.ID, status, limit)
	} else {
		reports, err = h.reportService.ListAccessible(actor.ID, status, limit)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Reports retrieved successfully",
		"data":    reports,
	})
}

// CreateCumulativeRequest 是创建累计报告的请求体。
// Weights 可按来源报告 id 覆盖默认权重 1.0。
type CreateCumulativeRequest struct {
	DepartmentID    uint             `json:"department_id" binding:"required"`
	PeriodStart     string           `json:"period_start" binding:"required"` // RFC3339
	PeriodEnd       string           `json:"period_end" binding:"required"`   // RFC3339
	AggregationType string           `json:"aggregation_type"`
	Title           string           `json:"title"`
	Language        string           `json:"language"`
	Weights         map[uint]float64 `json:"weights"`
}

// CreateCumulative 触发聚合引擎生成累计报告。
// 摘要在响应返回后异步补全，未完成前 summary_pending 为 true。
func (h *ReportHandler) CreateCumulative(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}

	var req CreateCumulativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid request body",
		})
		return
	}

	period, ok := parsePeriod(c, req.PeriodStart, req.PeriodEnd)
	if !ok {
		return
	}

	report, err := h.aggregationService.CreateCumulative(c.Request.Context(), actor.ID,
		req.DepartmentID, period, req.AggregationType, req.Title, req.Language, req.Weights)
	if err != nil {
		log.Warnf("ReportHandler.CreateCumulative: failed for department %d: %v", req.DepartmentID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Cumulative report created successfully",
		"data":    report,
	})
}

// EligibleSources 预览窗口内可聚合的来源报告，便于前端先行展示。
func (h *ReportHandler) EligibleSources(c *gin.Context) {
	actor, ok := getUserFromContext(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	period, ok := parsePeriod(c, c.Query("period_start"), c.Query("period_end"))
	if !ok {
		return
	}

	sources, err := h.aggregationService.EligibleSources(actor.ID, id, period)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Eligible source reports retrieved successfully",
		"data":    sources,
	})
}

// parsePeriod 解析一对 RFC3339 时间戳并做基本校验，失败时写 400 响应。
func parsePeriod(c *gin.Context, startRaw, endRaw string) (model.Period, bool) {
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid period_start, want RFC3339 timestamp",
		})
		return model.Period{}, false
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "Invalid period_end, want RFC3339 timestamp",
		})
		return model.Period{}, false
	}
	return model.Period{Start: start, End: end}, true
}
