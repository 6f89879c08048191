package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"course-advisor/backend/internal/dto"
	"course-advisor/backend/internal/model"
	"course-advisor/backend/internal/planner"
	"course-advisor/backend/internal/repository"
)

// ── 课表模块业务错误 ──

var (
	ErrNoSectionsMatch  = errors.New("没有同时满足先修要求与空闲时段的班次")
	ErrScheduleNotFound = errors.New("课表不存在")
)

// ScheduleService 课表生成与查询业务接口
type ScheduleService interface {
	// Generate 为学生生成一份新课表并持久化，历史课表保留
	Generate(ctx context.Context, req *dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error)
	ListByStudent(ctx context.Context, studentID string, req *dto.PaginationRequest) ([]dto.ScheduleSummaryResponse, int64, error)
	Get(ctx context.Context, studentID, scheduleID string) (*dto.ScheduleResponse, error)
	Delete(ctx context.Context, studentID, scheduleID string) error
}

type scheduleService struct {
	repo   *repository.Repository
	engine *planner.Planner
	logger *zap.Logger
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(repo *repository.Repository, engine *planner.Planner, logger *zap.Logger) ScheduleService {
	return &scheduleService{repo: repo, engine: engine, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// Generate 生成课表
// ═══════════════════════════════════════════════════════════
//
// 流程：
//   1. 并发读取学生档案（已修课程、兴趣、空闲时段）与目录快照
//   2. 转换为排课引擎输入
//   3. 核心课 → 选修课（可选排序）→ 研究生课 依次录取
//   4. 课表与班次关联在同一事务内写入

func (s *scheduleService) Generate(ctx context.Context, req *dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	// 1. 学生与目录快照互不依赖，并发读取
	var (
		student *model.Student
		snap    *repository.CatalogSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		student, err = getStudent(gctx, s.repo, req.StudentID)
		return err
	})
	g.Go(func() error {
		var err error
		if snap, err = s.repo.Catalog.Snapshot(gctx); err != nil {
			return fmt.Errorf("加载课程目录失败: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if !errors.Is(err, ErrStudentNotFound) {
			s.logger.Error("读取排课输入失败", zap.String("student_id", req.StudentID), zap.Error(err))
		}
		return nil, err
	}

	// 2. 转换为排课引擎输入
	catalog := newCatalogIndex(snap).plannerCatalog(snap)

	completed := make([]string, len(student.Completed))
	for i, c := range student.Completed {
		completed[i] = c.CourseNumber
	}
	input := planner.NewStudent(student.StudentID, completed, student.InterestText(), student.Availability)

	// 3. 排课
	plan, err := s.engine.Plan(ctx, catalog, input)
	if err != nil {
		if errors.Is(err, planner.ErrNoCandidates) {
			return nil, fmt.Errorf("%w: %w", ErrNoSectionsMatch, err)
		}
		s.logger.Error("生成课表失败", zap.String("student_id", student.StudentID), zap.Error(err))
		return nil, err
	}

	// 4. 持久化
	schedule := &model.GeneratedSchedule{
		StudentID: student.StudentID,
		Rationale: plan.Rationale,
	}
	if err := s.repo.GeneratedSchedule.CreateWithSections(ctx, schedule, plan.SectionIDs()); err != nil {
		s.logger.Error("保存课表失败", zap.String("student_id", student.StudentID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("课表已生成",
		zap.String("student_id", student.StudentID),
		zap.String("schedule_id", schedule.ScheduleID),
		zap.Int("sections", len(plan.Admitted)),
		zap.String("ranking", plan.Ranking.String()),
	)

	return &dto.GenerateScheduleResponse{
		ScheduleResponse: dto.ScheduleResponse{
			ScheduleSummaryResponse: toScheduleSummary(schedule),
			Sections:                toPlannedSections(plan.Admitted),
		},
		Summary: toGenerationSummary(plan),
	}, nil
}

// ═══════════════════════════════════════════════════════════
// 查询与删除
// ═══════════════════════════════════════════════════════════

func (s *scheduleService) ListByStudent(ctx context.Context, studentID string, req *dto.PaginationRequest) ([]dto.ScheduleSummaryResponse, int64, error) {
	if _, err := getStudent(ctx, s.repo, studentID); err != nil {
		if !errors.Is(err, ErrStudentNotFound) {
			s.logger.Error("查询学生失败", zap.Error(err))
		}
		return nil, 0, err
	}

	schedules, total, err := s.repo.GeneratedSchedule.ListByStudent(ctx, studentID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询课表列表失败", zap.Error(err))
		return nil, 0, err
	}
	list := make([]dto.ScheduleSummaryResponse, len(schedules))
	for i := range schedules {
		list[i] = toScheduleSummary(&schedules[i])
	}
	return list, total, nil
}

func (s *scheduleService) Get(ctx context.Context, studentID, scheduleID string) (*dto.ScheduleResponse, error) {
	schedule, err := loadOwnedSchedule(ctx, s.repo, studentID, scheduleID)
	if err != nil {
		if !errors.Is(err, ErrScheduleNotFound) {
			s.logger.Error("查询课表失败", zap.Error(err))
		}
		return nil, err
	}

	core, err := s.repo.Catalog.ListCore(ctx)
	if err != nil {
		s.logger.Error("查询核心课程失败", zap.Error(err))
		return nil, err
	}
	isCore := make(map[string]bool, len(core))
	for _, c := range core {
		isCore[c.CourseNumber] = true
	}

	graduateLevel := s.engine.Policy().GraduateLevel
	sections := make([]dto.ScheduledSectionResponse, 0, len(schedule.Sections))
	for _, link := range schedule.Sections {
		if link.Section == nil {
			continue
		}
		item := dto.ScheduledSectionResponse{
			Position:        link.Position + 1,
			Bucket:          planner.Classify(link.Section.CourseNumber, isCore[link.Section.CourseNumber], graduateLevel).String(),
			SectionResponse: toSectionResponse(link.Section),
		}
		if link.Section.Course != nil {
			item.CourseName = link.Section.Course.Name
		}
		sections = append(sections, item)
	}

	return &dto.ScheduleResponse{
		ScheduleSummaryResponse: toScheduleSummary(schedule),
		Sections:                sections,
	}, nil
}

func (s *scheduleService) Delete(ctx context.Context, studentID, scheduleID string) error {
	if _, err := loadOwnedSchedule(ctx, s.repo, studentID, scheduleID); err != nil {
		if !errors.Is(err, ErrScheduleNotFound) {
			s.logger.Error("查询课表失败", zap.Error(err))
		}
		return err
	}
	if err := s.repo.GeneratedSchedule.Delete(ctx, scheduleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrScheduleNotFound
		}
		s.logger.Error("删除课表失败", zap.Error(err))
		return err
	}
	return nil
}

// ── 辅助函数 ──

// loadOwnedSchedule 课表不存在或不属于该学生时返回 ErrScheduleNotFound
func loadOwnedSchedule(ctx context.Context, repo *repository.Repository, studentID, scheduleID string) (*model.GeneratedSchedule, error) {
	if !isUUID(studentID) || !isUUID(scheduleID) {
		return nil, ErrScheduleNotFound
	}
	schedule, err := repo.GeneratedSchedule.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	if schedule.StudentID != studentID {
		return nil, ErrScheduleNotFound
	}
	return schedule, nil
}

func toScheduleSummary(s *model.GeneratedSchedule) dto.ScheduleSummaryResponse {
	return dto.ScheduleSummaryResponse{
		ID:        s.ScheduleID,
		StudentID: s.StudentID,
		Rationale: s.Rationale,
		CreatedAt: formatTime(s.CreatedAt),
	}
}

func toPlannedSections(admitted []planner.Candidate) []dto.ScheduledSectionResponse {
	list := make([]dto.ScheduledSectionResponse, len(admitted))
	for i, c := range admitted {
		sec := &model.Section{
			SectionID:    c.Section.ID,
			CourseNumber: c.CourseNumber,
			Label:        c.Section.Label,
			Days:         c.Section.Days,
			StartMin:     c.Section.Start,
			EndMin:       c.Section.End,
		}
		list[i] = dto.ScheduledSectionResponse{
			Position:        i + 1,
			CourseName:      c.CourseName,
			Bucket:          c.Bucket.String(),
			SectionResponse: toSectionResponse(sec),
		}
	}
	return list
}

func toGenerationSummary(plan *planner.Plan) dto.GenerationSummary {
	summary := dto.GenerationSummary{
		NumCoreCompleted: plan.NumCoreCompleted,
		Admitted:         make(map[string]int, 3),
		Candidates:       make(map[string]int, 3),
		Ranking:          plan.Ranking.String(),
		OracleUsed:       plan.Ranking == planner.RankApplied,
	}
	for _, b := range []planner.Bucket{planner.BucketCore, planner.BucketElective, planner.BucketGraduate} {
		summary.Admitted[b.String()] = plan.Count(b)
		summary.Candidates[b.String()] = plan.Candidates[b]
	}
	return summary
}
