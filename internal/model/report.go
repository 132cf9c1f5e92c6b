package model

import "time"

// 报告状态机：draft -> submitted -> {approved, rejected}，approved/rejected -> archived。
// rejected 允许退回 draft，供提交人修改后重新提交。
// submitted 即待审批态，没有操作会主动进入 pending_approval；
// 该状态只为从旧系统导入的行保留，审批同样接受它。
const (
	ReportStatusDraft           = "draft"
	ReportStatusSubmitted       = "submitted"
	ReportStatusPendingApproval = "pending_approval"
	ReportStatusApproved        = "approved"
	ReportStatusRejected        = "rejected"
	ReportStatusArchived        = "archived"
)

// 报告类型标签。cumulative 由聚合引擎生成，其余由用户创建时选择。
const (
	ReportTypeDaily      = "daily"
	ReportTypeWeekly     = "weekly"
	ReportTypeMonthly    = "monthly"
	ReportTypeIncident   = "incident"
	ReportTypeCumulative = "cumulative"
	ReportTypeCustom     = "custom"
)

// 报告优先级。
const (
	ReportPriorityLow    = "low"
	ReportPriorityNormal = "normal"
	ReportPriorityHigh   = "high"
	ReportPriorityUrgent = "urgent"
)

// 审批决定。
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Report 对应数据库中 reports 表。
// 普通报告与累计报告共用一张表，靠 IsCumulative 区分：
//   - 普通报告的来源列表恒为空；
//   - 累计报告创建时其来源报告必须全部处于 approved 状态、
//     且属于所属部门的子树，来源关系落在 report_aggregations 表。
type Report struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title           string     `gorm:"type:varchar(255);not null" json:"title"`
	Content         string     `gorm:"type:text;not null" json:"content"`
	Type            string     `gorm:"type:varchar(32);not null;index" json:"type"`
	Status          string     `gorm:"type:varchar(32);not null;default:'draft';index" json:"status"`
	Priority        string     `gorm:"type:varchar(16);not null;default:'normal'" json:"priority"`
	SubmittedBy     int64      `gorm:"not null;index" json:"submittedBy"`
	DepartmentID    uint       `gorm:"not null;index" json:"departmentId"`
	IsCumulative    bool       `gorm:"not null;default:false;index" json:"isCumulative"`
	AggregationType string     `gorm:"type:varchar(32)" json:"aggregationType"` // 透传元数据，不参与筛选
	PeriodStart     *time.Time `json:"periodStart"`
	PeriodEnd       *time.Time `json:"periodEnd"`
	Summary         string     `gorm:"type:text" json:"summary"`
	SummaryPending  bool       `gorm:"not null;default:false" json:"summaryPending"`
	SubmittedAt     *time.Time `gorm:"index" json:"submittedAt"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定 GORM 使用的表名
func (Report) TableName() string {
	return "reports"
}

// Terminal 判断报告是否处于终态。终态只能再转向 archived。
func (r *Report) Terminal() bool {
	return r.Status == ReportStatusApproved || r.Status == ReportStatusRejected
}

// ReportAggregation 对应数据库中 report_aggregations 表，
// 是累计报告与其来源报告之间的连接记录，随累计报告在同一事务内创建，之后不再变更。
// Weight 预留给加权汇总，默认 1.0，核心只负责存储调用方给定的值。
type ReportAggregation struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CumulativeReportID uint      `gorm:"not null;index" json:"cumulativeReportId"`
	SourceReportID     uint      `gorm:"not null;index" json:"sourceReportId"`
	DepartmentID       uint      `json:"departmentId"`
	Weight             float64   `gorm:"not null;default:1.0" json:"weight"`
	IncludedAt         time.Time `gorm:"autoCreateTime" json:"includedAt"`
}

// TableName 指定 GORM 使用的表名
func (ReportAggregation) TableName() string {
	return "report_aggregations"
}

// ReportApproval 对应数据库中 report_approvals 表，记录一次审批动作。
type ReportApproval struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ReportID   uint      `gorm:"not null;index" json:"reportId"`
	ApproverID int64     `gorm:"not null" json:"approverId"`
	Decision   string    `gorm:"type:varchar(16);not null" json:"decision"`
	Notes      string    `gorm:"type:varchar(512)" json:"notes"`
	DecidedAt  time.Time `gorm:"autoCreateTime" json:"decidedAt"`
}

// TableName 指定 GORM 使用的表名
func (ReportApproval) TableName() string {
	return "report_approvals"
}

// Period 表示聚合的时间窗口，左右边界都含。
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
