package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"orgreport/internal/model"
	"orgreport/internal/repository"

	"gorm.io/gorm"
)

// reportTransitions 是报告状态机的合法转移表。
// draft -> submitted -> {approved, rejected} -> archived
// rejected -> draft 允许退回重写（本仓库采用的重提交策略）。
// submitted 本身就是待审批态；pending_approval 只为导入的旧数据保留，
// 没有操作会转移进去，但处于该状态的行可以正常审批。
var reportTransitions = map[string][]string{
	model.ReportStatusDraft:           {model.ReportStatusSubmitted},
	model.ReportStatusSubmitted:       {model.ReportStatusApproved, model.ReportStatusRejected},
	model.ReportStatusPendingApproval: {model.ReportStatusApproved, model.ReportStatusRejected},
	model.ReportStatusApproved:        {model.ReportStatusArchived},
	model.ReportStatusRejected:        {model.ReportStatusArchived, model.ReportStatusDraft},
	model.ReportStatusArchived:        {},
}

func transitionAllowed(from, to string) bool {
	for _, t := range reportTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

var validReportTypes = map[string]bool{
	model.ReportTypeDaily:    true,
	model.ReportTypeWeekly:   true,
	model.ReportTypeMonthly:  true,
	model.ReportTypeIncident: true,
	model.ReportTypeCustom:   true,
	// cumulative 不在这里：累计报告只能由聚合引擎生成。
}

var validPriorities = map[string]bool{
	model.ReportPriorityLow:    true,
	model.ReportPriorityNormal: true,
	model.ReportPriorityHigh:   true,
	model.ReportPriorityUrgent: true,
}

// ReportService 封装报告生命周期逻辑。
// 所有写操作先过访问控制器；拒绝即返回 ErrPermissionDenied，不产生任何副作用。
type ReportService interface {
	Create(actorID int64, title, content, reportType, priority string, departmentID uint) (*model.Report, error)
	// Submit 把 draft 报告置为 submitted 并盖提交时间戳，仅提交人本人可操作。
	Submit(reportID uint, actorID int64) error
	// Resubmit 把 rejected 报告退回 draft 供修改后重新提交。
	Resubmit(reportID uint, actorID int64) error
	// Decide 审批：写入审批记录并切换状态，同一事务内完成。
	// 审批人不能审批自己的报告。
	Decide(reportID uint, approverID int64, decision, notes string) error
	// Archive 归档，仅允许从终态（approved/rejected）进入。
	Archive(reportID uint, actorID int64) error

	FindByID(reportID uint, actorID int64) (*model.Report, error)
	// SourceLinks 返回累计报告的来源连接，可见性规则与 FindByID 一致。
	// 非累计报告返回空切片。
	SourceLinks(reportID uint, actorID int64) ([]model.ReportAggregation, error)
	ListOwn(actorID int64, status string, limit int) ([]model.Report, error)
	// ListAccessible 返回用户视野内（自身部门/子树/全局）的报告。
	ListAccessible(actorID int64, status string, limit int) ([]model.Report, error)
}

type reportService struct {
	reportRepo repository.ReportRepository
	deptRepo   repository.DepartmentRepository
	evaluator  AccessEvaluator
	audit      AuditRecorder
	now        func() time.Time
}

func NewReportService(reportRepo repository.ReportRepository, deptRepo repository.DepartmentRepository,
	evaluator AccessEvaluator, audit AuditRecorder) ReportService {
	return &reportService{
		reportRepo: reportRepo,
		deptRepo:   deptRepo,
		evaluator:  evaluator,
		audit:      audit,
		now:        time.Now,
	}
}

func (s *reportService) Create(actorID int64, title, content, reportType, priority string, departmentID uint) (*model.Report, error) {
	if s.reportRepo == nil || s.evaluator == nil {
		return nil, ErrInternal
	}

	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, ErrInvalidInput
	}
	if !validReportTypes[reportType] {
		return nil, ErrInvalidInput
	}
	if priority == "" {
		priority = model.ReportPriorityNormal
	}
	if !validPriorities[priority] {
		return nil, ErrInvalidInput
	}

	dept, err := s.deptRepo.FindByID(departmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		return nil, err
	}
	if !dept.IsActive {
		return nil, ErrDepartmentNotFound
	}

	allowed, err := s.evaluator.CanAct(actorID, model.CapCreateReport, departmentID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}

	report := &model.Report{
		Title:        title,
		Content:      content,
		Type:         reportType,
		Status:       model.ReportStatusDraft,
		Priority:     priority,
		SubmittedBy:  actorID,
		DepartmentID: departmentID,
	}
	if err := s.reportRepo.Create(report); err != nil {
		return nil, err
	}

	s.audit.Record(actorID, "create_report", "report", report.ID, "", fmt.Sprintf("title=%s dept=%d", report.Title, departmentID))
	return report, nil
}

func (s *reportService) Submit(reportID uint, actorID int64) error {
	report, err := s.load(reportID)
	if err != nil {
		return err
	}
	if report.SubmittedBy != actorID {
		return ErrPermissionDenied
	}
	if !transitionAllowed(report.Status, model.ReportStatusSubmitted) {
		return ErrInvalidTransition
	}

	submittedAt := s.now()
	if err := s.reportRepo.UpdateStatus(report.ID, model.ReportStatusSubmitted, &submittedAt); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReportNotFound
		}
		return err
	}

	s.audit.Record(actorID, "submit_report", "report", report.ID, report.Status, model.ReportStatusSubmitted)
	return nil
}

func (s *reportService) Resubmit(reportID uint, actorID int64) error {
	report, err := s.load(reportID)
	if err != nil {
		return err
	}
	if report.SubmittedBy != actorID {
		return ErrPermissionDenied
	}
	if !transitionAllowed(report.Status, model.ReportStatusDraft) {
		return ErrInvalidTransition
	}

	if err := s.reportRepo.UpdateStatus(report.ID, model.ReportStatusDraft, nil); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReportNotFound
		}
		return err
	}

	s.audit.Record(actorID, "resubmit_report", "report", report.ID, report.Status, model.ReportStatusDraft)
	return nil
}

func (s *reportService) Decide(reportID uint, approverID int64, decision, notes string) error {
	if decision != model.DecisionApproved && decision != model.DecisionRejected {
		return ErrInvalidInput
	}

	report, err := s.load(reportID)
	if err != nil {
		return err
	}

	newStatus := model.ReportStatusApproved
	if decision == model.DecisionRejected {
		newStatus = model.ReportStatusRejected
	}
	if !transitionAllowed(report.Status, newStatus) {
		return ErrInvalidTransition
	}

	// 审批人不能审批自己的报告（哪怕是 admin）。
	if report.SubmittedBy == approverID {
		return ErrPermissionDenied
	}

	allowed, err := s.evaluator.CanAct(approverID, model.CapApprove, report.DepartmentID)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrPermissionDenied
	}

	approval := &model.ReportApproval{
		ReportID:   report.ID,
		ApproverID: approverID,
		Decision:   decision,
		Notes:      strings.TrimSpace(notes),
	}
	if err := s.reportRepo.Decide(report, approval, newStatus); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReportNotFound
		}
		return err
	}

	s.audit.Record(approverID, "decide_report", "report", report.ID, report.Status, newStatus)
	return nil
}

func (s *reportService) Archive(reportID uint, actorID int64) error {
	report, err := s.load(reportID)
	if err != nil {
		return err
	}
	// 只有终态（approved/rejected）可以归档。
	if !report.Terminal() {
		return ErrInvalidTransition
	}

	// 归档自己的报告不需要额外能力；归档他人的报告要有部门审批权。
	if report.SubmittedBy != actorID {
		allowed, err := s.evaluator.CanAct(actorID, model.CapApprove, report.DepartmentID)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrPermissionDenied
		}
	}

	if err := s.reportRepo.UpdateStatus(report.ID, model.ReportStatusArchived, nil); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReportNotFound
		}
		return err
	}

	s.audit.Record(actorID, "archive_report", "report", report.ID, report.Status, model.ReportStatusArchived)
	return nil
}

func (s *reportService) FindByID(reportID uint, actorID int64) (*model.Report, error) {
	report, err := s.load(reportID)
	if err != nil {
		return nil, err
	}

	// 本人的报告总是可见；他人的报告需要部门视野。
	if report.SubmittedBy == actorID {
		return report, nil
	}
	allowed, err := s.evaluator.CanAct(actorID, model.CapViewDepartment, report.DepartmentID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}
	return report, nil
}

func (s *reportService) SourceLinks(reportID uint, actorID int64) ([]model.ReportAggregation, error) {
	report, err := s.FindByID(reportID, actorID)
	if err != nil {
		return nil, err
	}
	if !report.IsCumulative {
		return []model.ReportAggregation{}, nil
	}
	return s.reportRepo.FindAggregationLinks(report.ID)
}

func (s *reportService) ListOwn(actorID int64, status string, limit int) ([]model.Report, error) {
	if s.reportRepo == nil {
		return nil, ErrInternal
	}
	return s.reportRepo.FindBySubmitter(actorID, status, limit)
}

func (s *reportService) ListAccessible(actorID int64, status string, limit int) ([]model.Report, error) {
	if s.reportRepo == nil || s.evaluator == nil {
		return nil, ErrInternal
	}

	deptIDs, err := s.evaluator.AccessibleDepartments(actorID)
	if err != nil {
		return nil, err
	}

	reports, err := s.reportRepo.FindByDepartments(deptIDs, status, limit)
	if err != nil {
		return nil, err
	}

	// 员工没有部门视野，但自己的报告始终可见；合并去重。
	own, err := s.reportRepo.FindBySubmitter(actorID, status, limit)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint]bool, len(reports))
	for _, r := range reports {
		seen[r.ID] = true
	}
	for _, r := range own {
		if !seen[r.ID] {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

func (s *reportService) load(reportID uint) (*model.Report, error) {
	if s.reportRepo == nil || s.evaluator == nil {
		return nil, ErrInternal
	}
	report, err := s.reportRepo.FindByID(reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return report, nil
}
