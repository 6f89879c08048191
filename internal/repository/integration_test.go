//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"course-advisor/backend/internal/model"
	"course-advisor/backend/internal/repository"
	"course-advisor/backend/internal/seed"
	"course-advisor/backend/pkg/database"
	pkgerrors "course-advisor/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var (
	testDB      *gorm.DB
	testCatalog *seed.Catalog
)

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=advisor password=advisor_password dbname=course_advisor_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "执行迁移失败: %v\n", err)
		os.Exit(1)
	}

	testCatalog, err = seed.Default()
	if err != nil {
		fmt.Fprintf(os.Stderr, "解析默认目录失败: %v\n", err)
		os.Exit(1)
	}
	snapshot := &repository.CatalogSnapshot{
		Courses:       testCatalog.Courses,
		Prerequisites: testCatalog.Prerequisites,
		Groups:        testCatalog.Groups,
		Core:          testCatalog.Core,
	}
	if err := repository.NewRepository(testDB).Catalog.ReplaceAll(context.Background(), snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "写入默认目录失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func newTestStudent(t *testing.T, completed ...string) (*model.Student, func()) {
	t.Helper()
	s := &model.Student{
		NetID:          fmt.Sprintf("t%d", time.Now().UnixNano()),
		PasswordHash:   "$2a$10$placeholder",
		Role:           model.RoleStudent,
		GraduationYear: "2027",
		Availability:   strings.Repeat("1", model.AvailabilitySlots),
	}
	repo := repository.NewRepository(testDB)
	if err := repo.Student.Create(context.Background(), s, completed); err != nil {
		t.Fatalf("创建学生失败: %v", err)
	}
	return s, func() {
		testDB.Where("student_id = ?", s.StudentID).Delete(&model.Student{})
	}
}

// ═══════════════════════════════════════════════════════════
// Catalog
// ═══════════════════════════════════════════════════════════

func TestCatalog_Snapshot(t *testing.T) {
	repo := repository.NewRepository(testDB)

	snap, err := repo.Catalog.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot 失败: %v", err)
	}
	if len(snap.Courses) != len(testCatalog.Courses) {
		t.Errorf("课程数 = %d, want %d", len(snap.Courses), len(testCatalog.Courses))
	}
	if len(snap.Core) != 10 {
		t.Errorf("核心课程数 = %d, want 10", len(snap.Core))
	}
	if len(snap.Groups) != len(testCatalog.Groups) {
		t.Errorf("先修表达式成员数 = %d, want %d", len(snap.Groups), len(testCatalog.Groups))
	}
	for i := 1; i < len(snap.Courses); i++ {
		if snap.Courses[i-1].CourseNumber > snap.Courses[i].CourseNumber {
			t.Fatal("课程应按课程号排序")
		}
	}
}

func TestCatalog_GetCourseAndSection(t *testing.T) {
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	course, err := repo.Catalog.GetCourse(ctx, "CS 2110")
	if err != nil {
		t.Fatalf("GetCourse 失败: %v", err)
	}
	if len(course.Sections) != 2 || course.Sections[0].Label != "LEC 001" {
		t.Errorf("班次加载异常: %+v", course.Sections)
	}

	section, err := repo.Catalog.GetSection(ctx, course.Sections[0].SectionID)
	if err != nil {
		t.Fatalf("GetSection 失败: %v", err)
	}
	if section.Course == nil || section.Course.CourseNumber != "CS 2110" {
		t.Error("班次应带出所属课程")
	}

	if _, err := repo.Catalog.GetCourse(ctx, "CS 0000"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("期望 ErrRecordNotFound，实际 %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Student
// ═══════════════════════════════════════════════════════════

func TestStudent_CreateWithCompletions(t *testing.T) {
	s, cleanup := newTestStudent(t, "CS 1110", "CS 2800", "CS 1110")
	defer cleanup()
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	got, err := repo.Student.GetByID(ctx, s.StudentID)
	if err != nil {
		t.Fatalf("GetByID 失败: %v", err)
	}
	if len(got.Completed) != 2 {
		t.Errorf("已修课程数 = %d, want 2", len(got.Completed))
	}

	err = repo.Student.AddCompletion(ctx, &model.CompletedCourse{StudentID: s.StudentID, CourseNumber: "CS 1110"})
	if !errors.Is(err, pkgerrors.ErrDuplicateKey) {
		t.Errorf("重复添加期望 ErrDuplicateKey，实际 %v", err)
	}

	if err := repo.Student.RemoveCompletion(ctx, s.StudentID, "CS 4820"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("删除不存在的已修课程期望 ErrRecordNotFound，实际 %v", err)
	}
	if err := repo.Student.RemoveCompletion(ctx, s.StudentID, "CS 2800"); err != nil {
		t.Errorf("删除已修课程失败: %v", err)
	}
}

func TestStudent_DuplicateNetID(t *testing.T) {
	s, cleanup := newTestStudent(t)
	defer cleanup()

	dup := &model.Student{
		NetID:          s.NetID,
		PasswordHash:   "x",
		Role:           model.RoleStudent,
		GraduationYear: "2026",
		Availability:   strings.Repeat("0", model.AvailabilitySlots),
	}
	err := repository.NewRepository(testDB).Student.Create(context.Background(), dup, nil)
	if !errors.Is(err, pkgerrors.ErrDuplicateKey) {
		t.Errorf("期望 ErrDuplicateKey，实际 %v", err)
	}
}

func TestStudent_OptimisticLock(t *testing.T) {
	s, cleanup := newTestStudent(t)
	defer cleanup()
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	a, _ := repo.Student.GetByID(ctx, s.StudentID)
	b, _ := repo.Student.GetByID(ctx, s.StudentID)

	a.GraduationYear = "2028"
	if err := repo.Student.Update(ctx, a); err != nil {
		t.Fatalf("首次更新应成功: %v", err)
	}
	b.GraduationYear = "2029"
	if err := repo.Student.Update(ctx, b); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("并发更新期望 ErrOptimisticLock，实际 %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Generated schedule
// ═══════════════════════════════════════════════════════════

func TestGeneratedSchedule_CreateAndCascade(t *testing.T) {
	s, cleanup := newTestStudent(t)
	defer cleanup()
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	c1, _ := repo.Catalog.GetCourse(ctx, "CS 1110")
	c2, _ := repo.Catalog.GetCourse(ctx, "CS 2800")
	ids := []string{c2.Sections[0].SectionID, c1.Sections[0].SectionID}

	sched := &model.GeneratedSchedule{StudentID: s.StudentID, Rationale: "r"}
	if err := repo.GeneratedSchedule.CreateWithSections(ctx, sched, ids); err != nil {
		t.Fatalf("CreateWithSections 失败: %v", err)
	}

	got, err := repo.GeneratedSchedule.GetByID(ctx, sched.ScheduleID)
	if err != nil {
		t.Fatalf("GetByID 失败: %v", err)
	}
	if len(got.Sections) != 2 || got.Sections[0].SectionID != ids[0] || got.Sections[1].SectionID != ids[1] {
		t.Errorf("班次顺序应与写入顺序一致: %+v", got.Sections)
	}
	if got.Sections[0].Section == nil || got.Sections[0].Section.Course == nil {
		t.Error("应预加载班次与课程")
	}

	if err := repo.Student.Delete(ctx, s.StudentID); err != nil {
		t.Fatalf("删除学生失败: %v", err)
	}
	if _, err := repo.GeneratedSchedule.GetByID(ctx, sched.ScheduleID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("删除学生后课表应级联删除，实际 %v", err)
	}
}

func TestGeneratedSchedule_RollbackOnInvalidSection(t *testing.T) {
	s, cleanup := newTestStudent(t)
	defer cleanup()
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	sched := &model.GeneratedSchedule{StudentID: s.StudentID, Rationale: "r"}
	err := repo.GeneratedSchedule.CreateWithSections(ctx, sched, []string{uuid.NewString()})
	if err == nil {
		t.Fatal("引用不存在的班次应失败")
	}

	_, total, err := repo.GeneratedSchedule.ListByStudent(ctx, s.StudentID, 0, 10)
	if err != nil {
		t.Fatalf("ListByStudent 失败: %v", err)
	}
	if total != 0 {
		t.Errorf("事务回滚后不应存在课表，实际 %d", total)
	}
}

func reimportSnapshot(t *testing.T) *repository.CatalogSnapshot {
	t.Helper()
	cat, err := seed.Default()
	if err != nil {
		t.Fatalf("解析默认目录失败: %v", err)
	}
	return &repository.CatalogSnapshot{
		Courses:       cat.Courses,
		Prerequisites: cat.Prerequisites,
		Groups:        cat.Groups,
		Core:          cat.Core,
	}
}

func TestCatalog_ReimportKeepsScheduleSections(t *testing.T) {
	s, cleanup := newTestStudent(t)
	defer cleanup()
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	c1, _ := repo.Catalog.GetCourse(ctx, "CS 1110")
	c2, _ := repo.Catalog.GetCourse(ctx, "CS 2800")
	ids := []string{c2.Sections[0].SectionID, c1.Sections[0].SectionID}

	sched := &model.GeneratedSchedule{StudentID: s.StudentID, Rationale: "r"}
	if err := repo.GeneratedSchedule.CreateWithSections(ctx, sched, ids); err != nil {
		t.Fatalf("CreateWithSections 失败: %v", err)
	}

	// 重新解析的目录携带全新的 section_id，同一 (课程号, 标签) 应沿用原 ID
	if err := repo.Catalog.ReplaceAll(ctx, reimportSnapshot(t)); err != nil {
		t.Fatalf("重新导入失败: %v", err)
	}

	got, err := repo.GeneratedSchedule.GetByID(ctx, sched.ScheduleID)
	if err != nil {
		t.Fatalf("重新导入后 GetByID 失败: %v", err)
	}
	if len(got.Sections) != 2 || got.Sections[0].SectionID != ids[0] || got.Sections[1].SectionID != ids[1] {
		t.Errorf("重新导入后课表班次应保持不变: %+v", got.Sections)
	}

	after, err := repo.Catalog.GetCourse(ctx, "CS 1110")
	if err != nil {
		t.Fatalf("GetCourse 失败: %v", err)
	}
	if after.Sections[0].SectionID != c1.Sections[0].SectionID {
		t.Errorf("section_id 应保持稳定: %s → %s", c1.Sections[0].SectionID, after.Sections[0].SectionID)
	}
}

func TestCatalog_ReimportRejectsReferencedRemoval(t *testing.T) {
	s, cleanup := newTestStudent(t)
	defer cleanup()
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	c1, _ := repo.Catalog.GetCourse(ctx, "CS 1110")
	target := c1.Sections[0]
	sched := &model.GeneratedSchedule{StudentID: s.StudentID, Rationale: "r"}
	if err := repo.GeneratedSchedule.CreateWithSections(ctx, sched, []string{target.SectionID}); err != nil {
		t.Fatalf("CreateWithSections 失败: %v", err)
	}

	before, err := repo.Catalog.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot 失败: %v", err)
	}

	// 新目录去掉课表仍引用的班次
	snap := reimportSnapshot(t)
	for i := range snap.Courses {
		if snap.Courses[i].CourseNumber != "CS 1110" {
			continue
		}
		kept := snap.Courses[i].Sections[:0]
		for _, sec := range snap.Courses[i].Sections {
			if sec.Label != target.Label {
				kept = append(kept, sec)
			}
		}
		snap.Courses[i].Sections = kept
	}

	err = repo.Catalog.ReplaceAll(ctx, snap)
	if !errors.Is(err, pkgerrors.ErrReferenced) {
		t.Fatalf("期望 ErrReferenced，实际: %v", err)
	}

	after, err := repo.Catalog.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot 失败: %v", err)
	}
	if len(after.Courses) != len(before.Courses) {
		t.Errorf("导入被拒后目录应保持不变: %d → %d", len(before.Courses), len(after.Courses))
	}
	if _, err := repo.Catalog.GetSection(ctx, target.SectionID); err != nil {
		t.Errorf("被引用的班次应仍然存在: %v", err)
	}
}
