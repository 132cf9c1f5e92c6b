package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"orgreport/internal/model"
	"orgreport/internal/repository"
	"orgreport/pkg/log"
)

// Summarizer 是外部文本摘要协作方（生成式语言 API）的抽象。
// 尽力而为：调用失败不影响累计报告本身的创建。
type Summarizer interface {
	Summarize(ctx context.Context, reports []model.Report, language string) (string, error)
}

// summarizeTimeout 是单次摘要调用的时间上限。
// 摘要在报告与连接记录提交之后才发起，绝不占着库事务等外部服务。
const summarizeTimeout = 30 * time.Second

// AggregationService 实现累计报告的聚合引擎。
// 选源规则：approved、非累计（已聚合的报告不再二次聚合，防止重复计数）、
// 部门在目标子树内、提交时间落在窗口内。
type AggregationService interface {
	// CreateCumulative 创建累计报告。weights 可按来源报告 id 覆盖连接权重，
	// 未覆盖的默认 1.0；核心只存储给定的权重，不解释加权语义。
	CreateCumulative(ctx context.Context, requesterID int64, departmentID uint,
		period model.Period, aggregationType, title, language string,
		weights map[uint]float64) (*model.Report, error)
	// EligibleSources 返回窗口内的候选来源集合（同一选源规则，供预览）。
	EligibleSources(requesterID int64, departmentID uint, period model.Period) ([]model.Report, error)
}

type aggregationService struct {
	reportRepo repository.ReportRepository
	hierarchy  HierarchyService
	evaluator  AccessEvaluator
	summarizer Summarizer
	audit      AuditRecorder
	now        func() time.Time
}

// NewAggregationService 创建聚合引擎。summarizer 允许为 nil（未配置外部摘要服务），
// 此时累计报告一律带着 summary_pending 标记落库。
func NewAggregationService(reportRepo repository.ReportRepository, hierarchy HierarchyService,
	evaluator AccessEvaluator, summarizer Summarizer, audit AuditRecorder) AggregationService {
	return &aggregationService{
		reportRepo: reportRepo,
		hierarchy:  hierarchy,
		evaluator:  evaluator,
		summarizer: summarizer,
		audit:      audit,
		now:        time.Now,
	}
}

func (s *aggregationService) CreateCumulative(ctx context.Context, requesterID int64, departmentID uint,
	period model.Period, aggregationType, title, language string, weights map[uint]float64) (*model.Report, error) {
	if s.reportRepo == nil || s.hierarchy == nil || s.evaluator == nil {
		return nil, ErrInternal
	}
	if period.End.Before(period.Start) {
		return nil, ErrInvalidInput
	}

	// 1. 权限：create_cumulative 只对 upper_manager（祖先可下探）和 admin 放行。
	allowed, err := s.evaluator.CanAct(requesterID, model.CapCreateCumulative, departmentID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}

	// 2. 聚合范围 = 部门子树。
	subtree, err := s.hierarchy.Subtree(departmentID)
	if err != nil {
		return nil, err
	}

	// 3. 选源。
	sources, err := s.reportRepo.FindAggregationSources(subtree, period)
	if err != nil {
		return nil, err
	}
	// 4. 空集不建报告：调用方不得产生空的累计报告。
	if len(sources) == 0 {
		return nil, ErrNoEligibleReports
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = fmt.Sprintf("Cumulative report %s ~ %s",
			period.Start.Format("2006-01-02"), period.End.Format("2006-01-02"))
	}

	submittedAt := s.now()
	report := &model.Report{
		Title:           title,
		Content:         buildAggregationContent(sources),
		Type:            model.ReportTypeCumulative,
		Status:          model.ReportStatusSubmitted,
		Priority:        model.ReportPriorityNormal,
		SubmittedBy:     requesterID,
		DepartmentID:    departmentID,
		IsCumulative:    true,
		AggregationType: aggregationType, // 透传，不参与选源
		PeriodStart:     &period.Start,
		PeriodEnd:       &period.End,
		SummaryPending:  true,
		SubmittedAt:     &submittedAt,
	}

	// 5. 连接记录，默认权重 1.0，调用方可按来源覆盖。
	links := make([]model.ReportAggregation, 0, len(sources))
	for _, src := range sources {
		weight := 1.0
		if w, ok := weights[src.ID]; ok {
			weight = w
		}
		links = append(links, model.ReportAggregation{
			SourceReportID: src.ID,
			DepartmentID:   src.DepartmentID,
			Weight:         weight,
		})
	}

	// 6. 报告 + 连接原子落库：要么都在，要么都不在。
	if err := s.reportRepo.CreateCumulative(report, links); err != nil {
		return nil, err
	}

	s.audit.Record(requesterID, "create_cumulative_report", "report", report.ID,
		"", fmt.Sprintf("dept=%d sources=%d", departmentID, len(sources)))

	// 7. 摘要在提交之后才调外部服务，失败只降级为 summary_pending，
	//    聚合结果不因外部服务不可达而丢失。
	s.summarize(ctx, report, sources, language)

	return report, nil
}

func (s *aggregationService) EligibleSources(requesterID int64, departmentID uint, period model.Period) ([]model.Report, error) {
	if s.reportRepo == nil || s.hierarchy == nil || s.evaluator == nil {
		return nil, ErrInternal
	}

	allowed, err := s.evaluator.CanAct(requesterID, model.CapCreateCumulative, departmentID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}

	subtree, err := s.hierarchy.Subtree(departmentID)
	if err != nil {
		return nil, err
	}
	return s.reportRepo.FindAggregationSources(subtree, period)
}

func (s *aggregationService) summarize(ctx context.Context, report *model.Report, sources []model.Report, language string) {
	if s.summarizer == nil {
		return
	}

	sctx, cancel := context.WithTimeout(ctx, summarizeTimeout)
	defer cancel()

	summary, err := s.summarizer.Summarize(sctx, sources, language)
	if err != nil {
		log.Warnf("aggregation: summarizer unavailable for report %d, summary left pending: %v", report.ID, err)
		return
	}

	// 摘要文本原样落库，核心不解释、不校验外部生成的内容。
	if err := s.reportRepo.SetSummary(report.ID, summary); err != nil {
		log.Errorf("aggregation: failed to store summary for report %d: %v", report.ID, err)
		return
	}
	report.Summary = summary
	report.SummaryPending = false
}

// buildAggregationContent 把来源报告拼成累计报告的原始内容块。
// 这是聚合的确定性输入；AI 摘要只写到 Summary 字段，两者互不覆盖。
func buildAggregationContent(sources []model.Report) string {
	var b strings.Builder
	for i, r := range sources {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fmt.Sprintf("[%d] %s\n%s", r.ID, r.Title, r.Content))
	}
	return b.String()
}
