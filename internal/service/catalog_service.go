package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-advisor/backend/config"
	"course-advisor/backend/internal/dto"
	"course-advisor/backend/internal/model"
	"course-advisor/backend/internal/planner"
	"course-advisor/backend/internal/repository"
	"course-advisor/backend/internal/seed"
	pkgerrors "course-advisor/backend/pkg/errors"
)

// ── 课程目录业务错误 ──

var (
	ErrCourseNotFound  = errors.New("课程不存在")
	ErrSectionNotFound = errors.New("班次不存在")
	ErrInvalidSeed     = errors.New("目录文件格式无效")
	ErrCatalogInUse    = errors.New("新目录移除了已生成课表引用的班次")
)

// CatalogService 课程目录业务接口
type CatalogService interface {
	ListCourses(ctx context.Context, req *dto.CourseListRequest) ([]dto.CourseResponse, error)
	GetCourse(ctx context.Context, number string) (*dto.CourseResponse, error)
	ListSections(ctx context.Context) ([]dto.SectionResponse, error)
	GetSection(ctx context.Context, id string) (*dto.SectionResponse, error)
	ListCore(ctx context.Context) (*dto.CoreCoursesResponse, error)
	// Import 以 YAML 目录整体替换当前目录
	Import(ctx context.Context, data []byte) (*dto.ImportCatalogResponse, error)
}

type catalogService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCatalogService 创建 CatalogService 实例
func NewCatalogService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) CatalogService {
	return &catalogService{cfg: cfg, repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// 查询
// ═══════════════════════════════════════════════════════════

func (s *catalogService) ListCourses(ctx context.Context, req *dto.CourseListRequest) ([]dto.CourseResponse, error) {
	snap, err := s.repo.Catalog.Snapshot(ctx)
	if err != nil {
		s.logger.Error("加载课程目录失败", zap.Error(err))
		return nil, err
	}

	idx := newCatalogIndex(snap)
	keyword := strings.ToLower(strings.TrimSpace(req.Keyword))

	list := make([]dto.CourseResponse, 0, len(snap.Courses))
	for i := range snap.Courses {
		resp := idx.courseResponse(&snap.Courses[i], s.cfg.Planner.GraduateLevel)
		if req.Bucket != "" && resp.Bucket != req.Bucket {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(resp.Number), keyword) &&
			!strings.Contains(strings.ToLower(resp.Name), keyword) {
			continue
		}
		list = append(list, resp)
	}
	return list, nil
}

func (s *catalogService) GetCourse(ctx context.Context, number string) (*dto.CourseResponse, error) {
	number = seed.NormalizeNumber(number, s.cfg.Catalog.DefaultSubject)
	if number == "" {
		return nil, ErrCourseNotFound
	}

	snap, err := s.repo.Catalog.Snapshot(ctx)
	if err != nil {
		s.logger.Error("加载课程目录失败", zap.Error(err))
		return nil, err
	}

	idx := newCatalogIndex(snap)
	for i := range snap.Courses {
		if snap.Courses[i].CourseNumber == number {
			resp := idx.courseResponse(&snap.Courses[i], s.cfg.Planner.GraduateLevel)
			return &resp, nil
		}
	}
	return nil, ErrCourseNotFound
}

func (s *catalogService) ListSections(ctx context.Context) ([]dto.SectionResponse, error) {
	sections, err := s.repo.Catalog.ListSections(ctx)
	if err != nil {
		s.logger.Error("查询班次列表失败", zap.Error(err))
		return nil, err
	}
	list := make([]dto.SectionResponse, len(sections))
	for i := range sections {
		list[i] = toSectionResponse(&sections[i])
	}
	return list, nil
}

func (s *catalogService) GetSection(ctx context.Context, id string) (*dto.SectionResponse, error) {
	if !isUUID(id) {
		return nil, ErrSectionNotFound
	}
	section, err := s.repo.Catalog.GetSection(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		s.logger.Error("查询班次失败", zap.Error(err))
		return nil, err
	}
	resp := toSectionResponse(section)
	return &resp, nil
}

func (s *catalogService) ListCore(ctx context.Context) (*dto.CoreCoursesResponse, error) {
	core, err := s.repo.Catalog.ListCore(ctx)
	if err != nil {
		s.logger.Error("查询核心课程失败", zap.Error(err))
		return nil, err
	}
	numbers := make([]string, len(core))
	for i, c := range core {
		numbers[i] = c.CourseNumber
	}
	return &dto.CoreCoursesResponse{Courses: numbers}, nil
}

// ═══════════════════════════════════════════════════════════
// Import — 整体替换目录
// ═══════════════════════════════════════════════════════════

func (s *catalogService) Import(ctx context.Context, data []byte) (*dto.ImportCatalogResponse, error) {
	catalog, err := seed.Parse(data)
	if err != nil {
		return nil, errors.Join(ErrInvalidSeed, err)
	}

	snap := &repository.CatalogSnapshot{
		Courses:       catalog.Courses,
		Prerequisites: catalog.Prerequisites,
		Groups:        catalog.Groups,
		Core:          catalog.Core,
	}
	if err := s.repo.Catalog.ReplaceAll(ctx, snap); err != nil {
		if errors.Is(err, pkgerrors.ErrReferenced) {
			return nil, ErrCatalogInUse
		}
		s.logger.Error("替换课程目录失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("课程目录已替换",
		zap.Int("courses", len(catalog.Courses)),
		zap.Int("sections", catalog.SectionCount()),
	)
	return &dto.ImportCatalogResponse{
		Courses:       len(catalog.Courses),
		Sections:      catalog.SectionCount(),
		Prerequisites: len(catalog.Prerequisites),
		Groups:        len(catalog.Groups),
		Core:          len(catalog.Core),
	}, nil
}

// ── 目录索引 ──

// catalogIndex 快照的按课程号索引
type catalogIndex struct {
	edges      map[string][]string
	requiredBy map[string][]string
	groups     map[string][][]string
	core       map[string]bool
}

func newCatalogIndex(snap *repository.CatalogSnapshot) *catalogIndex {
	idx := &catalogIndex{
		edges:      make(map[string][]string),
		requiredBy: make(map[string][]string),
		groups:     make(map[string][][]string),
		core:       make(map[string]bool, len(snap.Core)),
	}
	for _, e := range snap.Prerequisites {
		idx.edges[e.CourseNumber] = append(idx.edges[e.CourseNumber], e.PrereqNumber)
		idx.requiredBy[e.PrereqNumber] = append(idx.requiredBy[e.PrereqNumber], e.CourseNumber)
	}

	// 快照已按 (course_number, group_index, prereq_number) 排序
	type groupKey struct {
		course string
		index  int
	}
	var order []groupKey
	members := make(map[groupKey][]string)
	for _, m := range snap.Groups {
		k := groupKey{m.CourseNumber, m.GroupIndex}
		if _, ok := members[k]; !ok {
			order = append(order, k)
		}
		members[k] = append(members[k], m.PrereqNumber)
	}
	for _, k := range order {
		idx.groups[k.course] = append(idx.groups[k.course], members[k])
	}

	for _, c := range snap.Core {
		idx.core[c.CourseNumber] = true
	}
	for k := range idx.requiredBy {
		sort.Strings(idx.requiredBy[k])
	}
	return idx
}

func (idx *catalogIndex) courseResponse(c *model.Course, graduateLevel int) dto.CourseResponse {
	isCore := idx.core[c.CourseNumber]
	sections := make([]dto.SectionResponse, len(c.Sections))
	for i := range c.Sections {
		sections[i] = toSectionResponse(&c.Sections[i])
	}
	return dto.CourseResponse{
		Number:            c.CourseNumber,
		Name:              c.Name,
		Description:       c.Description,
		Credits:           c.Credits,
		Bucket:            planner.Classify(c.CourseNumber, isCore, graduateLevel).String(),
		IsCore:            isCore,
		Sections:          sections,
		Prerequisites:     nonNil(idx.edges[c.CourseNumber]),
		RequiredBy:        nonNil(idx.requiredBy[c.CourseNumber]),
		RequirementGroups: idx.groups[c.CourseNumber],
	}
}

// plannerCatalog 将快照转换为排课引擎输入，保持目录顺序
func (idx *catalogIndex) plannerCatalog(snap *repository.CatalogSnapshot) *planner.Catalog {
	courses := make([]planner.Course, 0, len(snap.Courses))
	for _, c := range snap.Courses {
		pc := planner.Course{
			Number:      c.CourseNumber,
			Name:        c.Name,
			Requirement: planner.ResolveRequirement(idx.groups[c.CourseNumber], idx.edges[c.CourseNumber]),
			Sections:    make([]planner.Section, len(c.Sections)),
		}
		for i, sec := range c.Sections {
			pc.Sections[i] = planner.Section{
				ID:           sec.SectionID,
				CourseNumber: sec.CourseNumber,
				Label:        sec.Label,
				Days:         sec.Days,
				Start:        sec.StartMin,
				End:          sec.EndMin,
			}
		}
		courses = append(courses, pc)
	}

	core := make([]string, 0, len(snap.Core))
	for _, c := range snap.Core {
		core = append(core, c.CourseNumber)
	}
	return planner.NewCatalog(courses, core)
}

// ── 辅助函数 ──

func toSectionResponse(s *model.Section) dto.SectionResponse {
	resp := dto.SectionResponse{
		ID:           s.SectionID,
		CourseNumber: s.CourseNumber,
		Label:        s.Label,
		Days:         s.Days,
		StartMin:     s.StartMin,
		EndMin:       s.EndMin,
	}
	if s.HasTimes() {
		resp.StartTime = seed.MinutesToClock(*s.StartMin)
		resp.EndTime = seed.MinutesToClock(*s.EndMin)
	}
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
