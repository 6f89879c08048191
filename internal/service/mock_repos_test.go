package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-advisor/backend/config"
	"course-advisor/backend/internal/model"
	"course-advisor/backend/internal/planner"
	"course-advisor/backend/internal/repository"
	pkgerrors "course-advisor/backend/pkg/errors"
)

// ── Mock CatalogRepository ──

type mockCatalogRepo struct {
	snap        *repository.CatalogSnapshot
	replaceErr  error
	snapshotErr error
}

func newMockCatalogRepo(snap *repository.CatalogSnapshot) *mockCatalogRepo {
	if snap == nil {
		snap = &repository.CatalogSnapshot{}
	}
	return &mockCatalogRepo{snap: snap}
}

func (m *mockCatalogRepo) Snapshot(_ context.Context) (*repository.CatalogSnapshot, error) {
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	cp := *m.snap
	return &cp, nil
}

func (m *mockCatalogRepo) ListCourses(_ context.Context) ([]model.Course, error) {
	return m.snap.Courses, nil
}

func (m *mockCatalogRepo) GetCourse(_ context.Context, number string) (*model.Course, error) {
	for i := range m.snap.Courses {
		if m.snap.Courses[i].CourseNumber == number {
			c := m.snap.Courses[i]
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCatalogRepo) ListSections(_ context.Context) ([]model.Section, error) {
	var out []model.Section
	for _, c := range m.snap.Courses {
		out = append(out, c.Sections...)
	}
	return out, nil
}

func (m *mockCatalogRepo) GetSection(_ context.Context, id string) (*model.Section, error) {
	for i := range m.snap.Courses {
		c := &m.snap.Courses[i]
		for j := range c.Sections {
			if c.Sections[j].SectionID == id {
				s := c.Sections[j]
				s.Course = &model.Course{CourseNumber: c.CourseNumber, Name: c.Name}
				return &s, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCatalogRepo) GetSectionsByIDs(ctx context.Context, ids []string) ([]model.Section, error) {
	var out []model.Section
	for _, id := range ids {
		if s, err := m.GetSection(ctx, id); err == nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockCatalogRepo) ListPrerequisites(_ context.Context) ([]model.Prerequisite, error) {
	return m.snap.Prerequisites, nil
}

func (m *mockCatalogRepo) ListGroups(_ context.Context) ([]model.PrerequisiteGroupMember, error) {
	return m.snap.Groups, nil
}

func (m *mockCatalogRepo) ListCore(_ context.Context) ([]model.CoreCourse, error) {
	return m.snap.Core, nil
}

func (m *mockCatalogRepo) ReplaceAll(_ context.Context, snap *repository.CatalogSnapshot) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.snap = snap
	return nil
}

// ── Mock StudentRepository ──

type mockStudentRepo struct {
	students map[string]*model.Student // key: student_id
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*model.Student)}
}

func (m *mockStudentRepo) copyOf(s *model.Student) *model.Student {
	cp := *s
	cp.Completed = append([]model.CompletedCourse(nil), s.Completed...)
	sort.Slice(cp.Completed, func(i, j int) bool {
		return cp.Completed[i].CourseNumber < cp.Completed[j].CourseNumber
	})
	return &cp
}

func (m *mockStudentRepo) Create(_ context.Context, student *model.Student, completed []string) error {
	for _, s := range m.students {
		if s.NetID == student.NetID {
			return pkgerrors.ErrDuplicateKey
		}
	}
	if student.StudentID == "" {
		student.StudentID = uuid.NewString()
	}
	if student.Version == 0 {
		student.Version = 1
	}
	student.CreatedAt = time.Now()
	seen := make(map[string]bool)
	student.Completed = nil
	for _, n := range completed {
		if seen[n] {
			continue
		}
		seen[n] = true
		student.Completed = append(student.Completed, model.CompletedCourse{StudentID: student.StudentID, CourseNumber: n})
	}
	m.students[student.StudentID] = m.copyOf(student)
	return nil
}

func (m *mockStudentRepo) GetByID(_ context.Context, id string) (*model.Student, error) {
	if s, ok := m.students[id]; ok {
		return m.copyOf(s), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) GetByNetID(_ context.Context, netID string) (*model.Student, error) {
	for _, s := range m.students {
		if s.NetID == netID {
			return m.copyOf(s), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) List(_ context.Context, offset, limit int) ([]model.Student, int64, error) {
	var all []model.Student
	for _, s := range m.students {
		all = append(all, *m.copyOf(s))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].NetID < all[j].NetID })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockStudentRepo) Update(_ context.Context, student *model.Student) error {
	stored, ok := m.students[student.StudentID]
	if !ok || stored.Version != student.Version {
		return pkgerrors.ErrOptimisticLock
	}
	for id, s := range m.students {
		if id != student.StudentID && s.NetID == student.NetID {
			return pkgerrors.ErrDuplicateKey
		}
	}
	student.Version++
	stored.NetID = student.NetID
	stored.GraduationYear = student.GraduationYear
	stored.Interests = student.Interests
	stored.Availability = student.Availability
	stored.Version = student.Version
	return nil
}

func (m *mockStudentRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.students[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.students, id)
	return nil
}

func (m *mockStudentRepo) ListCompletions(_ context.Context, studentID string) ([]model.CompletedCourse, error) {
	s, ok := m.students[studentID]
	if !ok {
		return nil, nil
	}
	return m.copyOf(s).Completed, nil
}

func (m *mockStudentRepo) AddCompletion(_ context.Context, completion *model.CompletedCourse) error {
	s, ok := m.students[completion.StudentID]
	if !ok {
		return gorm.ErrForeignKeyViolated
	}
	for _, c := range s.Completed {
		if c.CourseNumber == completion.CourseNumber {
			return pkgerrors.ErrDuplicateKey
		}
	}
	completion.CreatedAt = time.Now()
	s.Completed = append(s.Completed, *completion)
	return nil
}

func (m *mockStudentRepo) RemoveCompletion(_ context.Context, studentID, courseNumber string) error {
	s, ok := m.students[studentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i, c := range s.Completed {
		if c.CourseNumber == courseNumber {
			s.Completed = append(s.Completed[:i], s.Completed[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Mock GeneratedScheduleRepository ──

type mockScheduleRepo struct {
	catalog   *mockCatalogRepo
	schedules map[string]*model.GeneratedSchedule
	createErr error
}

func newMockScheduleRepo(catalog *mockCatalogRepo) *mockScheduleRepo {
	return &mockScheduleRepo{catalog: catalog, schedules: make(map[string]*model.GeneratedSchedule)}
}

func (m *mockScheduleRepo) CreateWithSections(ctx context.Context, schedule *model.GeneratedSchedule, sectionIDs []string) error {
	if m.createErr != nil {
		return m.createErr
	}
	if schedule.ScheduleID == "" {
		schedule.ScheduleID = uuid.NewString()
	}
	schedule.CreatedAt = time.Now()
	schedule.Sections = nil
	for i, id := range sectionIDs {
		link := model.ScheduleSection{ScheduleID: schedule.ScheduleID, SectionID: id, Position: i}
		if sec, err := m.catalog.GetSection(ctx, id); err == nil {
			link.Section = sec
		}
		schedule.Sections = append(schedule.Sections, link)
	}
	cp := *schedule
	m.schedules[schedule.ScheduleID] = &cp
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id string) (*model.GeneratedSchedule, error) {
	if s, ok := m.schedules[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) ListByStudent(_ context.Context, studentID string, offset, limit int) ([]model.GeneratedSchedule, int64, error) {
	var all []model.GeneratedSchedule
	for _, s := range m.schedules {
		if s.StudentID == studentID {
			cp := *s
			cp.Sections = nil
			all = append(all, cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockScheduleRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.schedules[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.schedules, id)
	return nil
}

// ── 测试夹具 ──

type testEnv struct {
	cfg       *config.Config
	repo      *repository.Repository
	catalog   *mockCatalogRepo
	students  *mockStudentRepo
	schedules *mockScheduleRepo
	logger    *zap.Logger
}

func newTestConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret-0123456789", AccessTokenTTL: time.Hour},
		Planner: config.PlannerConfig{
			MaxSections:   5,
			CoreQuota:     3,
			GraduateLevel: 5000,
		},
		Term: config.TermConfig{
			Name:      "FA25",
			StartDate: "2025-08-25",
			EndDate:   "2025-12-09",
			Timezone:  "UTC",
		},
		Catalog: config.CatalogConfig{DefaultSubject: "CS"},
	}
}

func newTestEnv(snap *repository.CatalogSnapshot) *testEnv {
	catalog := newMockCatalogRepo(snap)
	students := newMockStudentRepo()
	schedules := newMockScheduleRepo(catalog)
	return &testEnv{
		cfg: newTestConfig(),
		repo: &repository.Repository{
			Catalog:           catalog,
			Student:           students,
			GeneratedSchedule: schedules,
		},
		catalog:   catalog,
		students:  students,
		schedules: schedules,
		logger:    zap.NewNop(),
	}
}

func (e *testEnv) planner(ranker planner.Ranker) *planner.Planner {
	return planner.New(planner.DefaultPolicy(), ranker, e.logger)
}

// addStudent 直接写入一个学生，返回其 ID
func (e *testEnv) addStudent(netID string, completed []string, interests string, availability string) string {
	s := &model.Student{
		NetID:          netID,
		PasswordHash:   "x",
		Role:           model.RoleStudent,
		GraduationYear: "2027",
		Availability:   availability,
	}
	if interests != "" {
		s.Interests = &interests
	}
	_ = e.students.Create(context.Background(), s, completed)
	return s.StudentID
}

// ── 目录夹具 ──

func intp(v int) *int { return &v }

// testSection 生成带确定性 UUID 的班次，start < 0 表示 TBA
func testSection(number, label, days string, start, end int) model.Section {
	s := model.Section{
		SectionID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte(number+"/"+label)).String(),
		CourseNumber: number,
		Label:        label,
		Days:         days,
	}
	if start >= 0 && end > start {
		s.StartMin, s.EndMin = intp(start), intp(end)
	}
	return s
}

func allFree() string {
	return strings.Repeat("1", model.AvailabilitySlots)
}

// testSnapshot 三门核心课、两门选修、一门 TBA、一门研究生课
//
//	CS 1110 (core)  MWF 9:05-9:55
//	CS 2110 (core)  TR 10:10-11:00，先修 CS 1110
//	CS 2800 (core)  TR 8:40-9:55
//	CS 4700         MW 13:25-14:15
//	CS 4780         TR 14:55-16:10，先修 CS 2110
//	CS 5414 (grad)  F 11:15-12:05
func testSnapshot() *repository.CatalogSnapshot {
	course := func(number, name string, secs ...model.Section) model.Course {
		return model.Course{CourseNumber: number, Name: name, Sections: secs}
	}
	return &repository.CatalogSnapshot{
		Courses: []model.Course{
			course("CS 1110", "Intro to Computing", testSection("CS 1110", "LEC 001", "MWF", 545, 595)),
			course("CS 2110", "OO Programming", testSection("CS 2110", "LEC 001", "TR", 610, 660)),
			course("CS 2800", "Discrete Structures", testSection("CS 2800", "LEC 001", "TR", 520, 595)),
			course("CS 4700", "Artificial Intelligence", testSection("CS 4700", "LEC 001", "MW", 805, 855)),
			course("CS 4780", "Machine Learning", testSection("CS 4780", "LEC 001", "TR", 895, 970)),
			course("CS 4999", "Independent Research", testSection("CS 4999", "IND 001", "TBA", -1, -1)),
			course("CS 5414", "Distributed Systems", testSection("CS 5414", "LEC 001", "F", 675, 725)),
		},
		Prerequisites: []model.Prerequisite{
			{CourseNumber: "CS 2110", PrereqNumber: "CS 1110"},
			{CourseNumber: "CS 4780", PrereqNumber: "CS 2110"},
		},
		Core: []model.CoreCourse{{CourseNumber: "CS 1110"}, {CourseNumber: "CS 2110"}, {CourseNumber: "CS 2800"}},
	}
}

func sectionIDOf(snap *repository.CatalogSnapshot, number string) string {
	for _, c := range snap.Courses {
		if c.CourseNumber == number && len(c.Sections) > 0 {
			return c.Sections[0].SectionID
		}
	}
	return ""
}
