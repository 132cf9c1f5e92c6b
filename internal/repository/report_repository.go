package repository

import (
	"fmt"
	"time"

	"orgreport/internal/model"

	"gorm.io/gorm"
)

// ReportRepository 定义报告及其附属记录（审批、聚合连接）的持久化操作接口。
// 状态转移的合法性检查在 service 层；仓库保证的是写入的原子性：
// 审批记录与状态变更、累计报告与来源连接，各自必须在一个事务内落库。
type ReportRepository interface {
	Create(report *model.Report) error
	FindByID(id uint) (*model.Report, error)
	// UpdateStatus 更新状态；submittedAt 非 nil 时一并写入提交时间。
	// 目标不存在时返回 gorm.ErrRecordNotFound。
	UpdateStatus(id uint, status string, submittedAt *time.Time) error

	FindBySubmitter(userID int64, status string, limit int) ([]model.Report, error)
	FindByDepartments(departmentIDs []uint, status string, limit int) ([]model.Report, error)
	// FindAggregationSources 选出聚合引擎的候选来源：
	// approved、非累计、部门在给定集合内、submitted_at 落在窗口内（闭区间）。
	FindAggregationSources(departmentIDs []uint, period model.Period) ([]model.Report, error)

	// Decide 在一个事务内写入审批记录并切换报告状态。
	Decide(report *model.Report, approval *model.ReportApproval, newStatus string) error
	// CreateCumulative 在一个事务内写入累计报告行和全部来源连接，
	// 任一失败则整体回滚，不会出现只有报告没有连接的中间态。
	CreateCumulative(report *model.Report, links []model.ReportAggregation) error
	FindAggregationLinks(cumulativeReportID uint) ([]model.ReportAggregation, error)
	// SetSummary 写入外部摘要文本并清除 summary_pending 标记。
	SetSummary(id uint, summary string) error
}

// reportRepository 是 ReportRepository 接口的 GORM 实现。
type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(report *model.Report) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	return r.db.Create(report).Error
}

func (r *reportRepository) FindByID(id uint) (*model.Report, error) {
	var report model.Report
	if err := r.db.First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) UpdateStatus(id uint, status string, submittedAt *time.Time) error {
	values := map[string]interface{}{"status": status}
	if submittedAt != nil {
		values["submitted_at"] = *submittedAt
	}

	tx := r.db.Model(&model.Report{}).
		Where("id = ?", id).
		Updates(values)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *reportRepository) FindBySubmitter(userID int64, status string, limit int) ([]model.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	tx := r.db.Where("submitted_by = ?", userID)
	if status != "" {
		tx = tx.Where("status = ?", status)
	}

	var reports []model.Report
	if err := tx.Order("created_at DESC").Limit(limit).Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepository) FindByDepartments(departmentIDs []uint, status string, limit int) ([]model.Report, error) {
	if len(departmentIDs) == 0 {
		return []model.Report{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	tx := r.db.Where("department_id IN ?", departmentIDs)
	if status != "" {
		tx = tx.Where("status = ?", status)
	}

	var reports []model.Report
	if err := tx.Order("submitted_at DESC").Limit(limit).Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepository) FindAggregationSources(departmentIDs []uint, period model.Period) ([]model.Report, error) {
	if len(departmentIDs) == 0 {
		return []model.Report{}, nil
	}

	var reports []model.Report
	if err := r.db.
		Where("status = ?", model.ReportStatusApproved).
		Where("is_cumulative = ?", false).
		Where("department_id IN ?", departmentIDs).
		Where("submitted_at >= ? AND submitted_at <= ?", period.Start, period.End).
		Order("department_id ASC, submitted_at ASC").
		Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepository) Decide(report *model.Report, approval *model.ReportApproval, newStatus string) error {
	if report == nil || approval == nil {
		return fmt.Errorf("report and approval are required")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(approval).Error; err != nil {
			return err
		}
		res := tx.Model(&model.Report{}).
			Where("id = ?", report.ID).
			Update("status", newStatus)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *reportRepository) CreateCumulative(report *model.Report, links []model.ReportAggregation) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if len(links) == 0 {
		return fmt.Errorf("aggregation links are required")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return err
		}
		for i := range links {
			links[i].CumulativeReportID = report.ID
		}
		return tx.Create(&links).Error
	})
}

func (r *reportRepository) FindAggregationLinks(cumulativeReportID uint) ([]model.ReportAggregation, error) {
	var links []model.ReportAggregation
	if err := r.db.
		Where("cumulative_report_id = ?", cumulativeReportID).
		Order("source_report_id ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *reportRepository) SetSummary(id uint, summary string) error {
	tx := r.db.Model(&model.Report{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"summary":         summary,
			"summary_pending": false,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
