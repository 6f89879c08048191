package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-advisor/backend/config"
	"course-advisor/backend/internal/dto"
	"course-advisor/backend/internal/model"
	"course-advisor/backend/internal/repository"
	"course-advisor/backend/internal/seed"
	pkgerrors "course-advisor/backend/pkg/errors"
)

// ── 学生模块业务错误 ──

var (
	ErrStudentNotFound     = errors.New("学生不存在")
	ErrEmptyUpdate         = errors.New("至少需要提供一个更新字段")
	ErrCompletionExists    = errors.New("该课程已在已修列表中")
	ErrCompletionNotFound  = errors.New("已修列表中不存在该课程")
	ErrInvalidCourseNumber = errors.New("课程号格式无效，应形如 CS 2110")
	ErrInvalidICS          = errors.New("ICS 文件无效")
)

// StudentService 学生档案业务接口
type StudentService interface {
	List(ctx context.Context, req *dto.PaginationRequest) ([]dto.StudentResponse, int64, error)
	Get(ctx context.Context, id string) (*dto.StudentResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateStudentRequest) (*dto.StudentResponse, error)
	Delete(ctx context.Context, id string) error

	ListCompletions(ctx context.Context, id string) (*dto.CompletionListResponse, error)
	AddCompletion(ctx context.Context, id string, req *dto.AddCompletionRequest) (*dto.CompletionResponse, error)
	// RemoveCompletion number 可省略院系前缀，缺省补全为配置的 subject
	RemoveCompletion(ctx context.Context, id, number string) error

	GetAvailability(ctx context.Context, id string) (*dto.AvailabilityResponse, error)
	SetAvailability(ctx context.Context, id string, req *dto.AvailabilityRequest) (*dto.AvailabilityResponse, error)
	// ImportAvailabilityICS 以 ICS 中每周重复的日程覆盖空闲时段
	ImportAvailabilityICS(ctx context.Context, id string, r io.Reader) (*dto.ICSImportResponse, error)
}

type studentService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
}

// NewStudentService 创建 StudentService 实例
func NewStudentService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) StudentService {
	return &studentService{cfg: cfg, repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// 档案
// ═══════════════════════════════════════════════════════════

func (s *studentService) List(ctx context.Context, req *dto.PaginationRequest) ([]dto.StudentResponse, int64, error) {
	students, total, err := s.repo.Student.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询学生列表失败", zap.Error(err))
		return nil, 0, err
	}
	list := make([]dto.StudentResponse, len(students))
	for i := range students {
		list[i] = toStudentResponse(&students[i])
	}
	return list, total, nil
}

func (s *studentService) Get(ctx context.Context, id string) (*dto.StudentResponse, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toStudentResponse(student)
	return &resp, nil
}

func (s *studentService) Update(ctx context.Context, id string, req *dto.UpdateStudentRequest) (*dto.StudentResponse, error) {
	if req.Empty() {
		return nil, ErrEmptyUpdate
	}

	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.NetID != nil {
		netID := strings.ToLower(strings.TrimSpace(*req.NetID))
		if netID != student.NetID {
			if _, err := s.repo.Student.GetByNetID(ctx, netID); err == nil {
				return nil, ErrNetIDTaken
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Error("查询学生失败", zap.Error(err))
				return nil, err
			}
		}
		student.NetID = netID
	}
	if req.GraduationYear != nil {
		student.GraduationYear = *req.GraduationYear
	}
	if req.Interests != nil {
		student.Interests = req.Interests
	}
	if req.Availability != nil {
		student.Availability = *req.Availability
	}

	if err := s.repo.Student.Update(ctx, student); err != nil {
		return nil, s.updateError(err)
	}
	resp := toStudentResponse(student)
	return &resp, nil
}

func (s *studentService) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrStudentNotFound
	}
	if err := s.repo.Student.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		s.logger.Error("删除学生失败", zap.Error(err))
		return err
	}
	return nil
}

// ═══════════════════════════════════════════════════════════
// 已修课程
// ═══════════════════════════════════════════════════════════

func (s *studentService) ListCompletions(ctx context.Context, id string) (*dto.CompletionListResponse, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.repo.Student.ListCompletions(ctx, id)
	if err != nil {
		s.logger.Error("查询已修课程失败", zap.Error(err))
		return nil, err
	}
	list := make([]dto.CompletionResponse, len(rows))
	for i, r := range rows {
		list[i] = dto.CompletionResponse{CourseNumber: r.CourseNumber, CreatedAt: formatTime(r.CreatedAt)}
	}
	return &dto.CompletionListResponse{CompletedCourses: list}, nil
}

func (s *studentService) AddCompletion(ctx context.Context, id string, req *dto.AddCompletionRequest) (*dto.CompletionResponse, error) {
	number := normalizeCourseNumber(req.CourseNumber, s.cfg.Catalog.DefaultSubject)
	if !dto.IsCourseNumber(number) {
		return nil, ErrInvalidCourseNumber
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	row := &model.CompletedCourse{StudentID: id, CourseNumber: number}
	if err := s.repo.Student.AddCompletion(ctx, row); err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicateKey) {
			return nil, ErrCompletionExists
		}
		s.logger.Error("添加已修课程失败", zap.Error(err))
		return nil, err
	}
	return &dto.CompletionResponse{CourseNumber: row.CourseNumber, CreatedAt: formatTime(row.CreatedAt)}, nil
}

func (s *studentService) RemoveCompletion(ctx context.Context, id, number string) error {
	number = normalizeCourseNumber(number, s.cfg.Catalog.DefaultSubject)
	if !dto.IsCourseNumber(number) {
		return ErrInvalidCourseNumber
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Student.RemoveCompletion(ctx, id, number); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCompletionNotFound
		}
		s.logger.Error("删除已修课程失败", zap.Error(err))
		return err
	}
	return nil
}

// ═══════════════════════════════════════════════════════════
// 空闲时段
// ═══════════════════════════════════════════════════════════

func (s *studentService) GetAvailability(ctx context.Context, id string) (*dto.AvailabilityResponse, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toAvailabilityResponse(student.Availability)
	return &resp, nil
}

func (s *studentService) SetAvailability(ctx context.Context, id string, req *dto.AvailabilityRequest) (*dto.AvailabilityResponse, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	student.Availability = req.Availability
	if err := s.repo.Student.Update(ctx, student); err != nil {
		return nil, s.updateError(err)
	}
	resp := toAvailabilityResponse(student.Availability)
	return &resp, nil
}

func (s *studentService) ImportAvailabilityICS(ctx context.Context, id string, r io.Reader) (*dto.ICSImportResponse, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	termStart, err := s.cfg.Term.Start()
	if err != nil {
		return nil, err
	}
	termEnd, err := s.cfg.Term.End()
	if err != nil {
		return nil, err
	}

	result, err := ParseBusyICS(r, termStart, termEnd, s.cfg.Term.Location())
	if err != nil {
		return nil, errors.Join(ErrInvalidICS, err)
	}

	student.Availability = result.Bitmap
	if err := s.repo.Student.Update(ctx, student); err != nil {
		return nil, s.updateError(err)
	}

	s.logger.Info("ICS 空闲时段已导入",
		zap.String("student_id", id),
		zap.Int("events", result.Events),
		zap.Int("busy_slots", result.BusySlots),
	)
	return &dto.ICSImportResponse{
		AvailabilityResponse: toAvailabilityResponse(result.Bitmap),
		Events:               result.Events,
		BusySlots:            result.BusySlots,
	}, nil
}

// ── 内部方法 ──

func (s *studentService) load(ctx context.Context, id string) (*model.Student, error) {
	student, err := getStudent(ctx, s.repo, id)
	if err != nil && !errors.Is(err, ErrStudentNotFound) {
		s.logger.Error("查询学生失败", zap.Error(err))
	}
	return student, err
}

func (s *studentService) updateError(err error) error {
	switch {
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		return pkgerrors.ErrOptimisticLock
	case errors.Is(err, pkgerrors.ErrDuplicateKey):
		return ErrNetIDTaken
	}
	s.logger.Error("更新学生失败", zap.Error(err))
	return err
}

// ── 辅助函数 ──

// getStudent 非法 UUID 与不存在的记录统一视为 ErrStudentNotFound
func getStudent(ctx context.Context, repo *repository.Repository, id string) (*model.Student, error) {
	if !isUUID(id) {
		return nil, ErrStudentNotFound
	}
	student, err := repo.Student.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func normalizeCourseNumber(raw, subject string) string {
	return seed.NormalizeNumber(raw, strings.ToUpper(subject))
}

func toStudentResponse(s *model.Student) dto.StudentResponse {
	completed := make([]string, len(s.Completed))
	for i, c := range s.Completed {
		completed[i] = c.CourseNumber
	}
	return dto.StudentResponse{
		ID:               s.StudentID,
		NetID:            s.NetID,
		Role:             s.Role,
		GraduationYear:   s.GraduationYear,
		Interests:        s.Interests,
		Availability:     s.Availability,
		CompletedCourses: completed,
		Version:          s.Version,
		CreatedAt:        formatTime(s.CreatedAt),
	}
}

var dayLetters = []string{"M", "T", "W", "R", "F", "S", "U"}

func toAvailabilityResponse(bitmap string) dto.AvailabilityResponse {
	resp := dto.AvailabilityResponse{
		Availability: bitmap,
		Days:         make([]dto.DayAvailability, len(dayLetters)),
	}
	for day, letter := range dayLetters {
		hours := []int{}
		for hour := 0; hour < 24; hour++ {
			if idx := day + 7*hour; idx < len(bitmap) && bitmap[idx] == '1' {
				hours = append(hours, hour)
			}
		}
		resp.Days[day] = dto.DayAvailability{Day: letter, FreeHours: hours}
		resp.FreeSlots += len(hours)
	}
	return resp
}
