package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-advisor/backend/internal/model"
)

// CatalogSnapshot 一次生成所需的目录快照
type CatalogSnapshot struct {
	Courses       []model.Course // 按课程号排序，Sections 按 position 排序
	Prerequisites []model.Prerequisite
	Groups        []model.PrerequisiteGroupMember
	Core          []model.CoreCourse
}

// CatalogRepository 课程目录数据访问接口
type CatalogRepository interface {
	Snapshot(ctx context.Context) (*CatalogSnapshot, error)
	ListCourses(ctx context.Context) ([]model.Course, error)
	GetCourse(ctx context.Context, number string) (*model.Course, error)
	ListSections(ctx context.Context) ([]model.Section, error)
	GetSection(ctx context.Context, id string) (*model.Section, error)
	GetSectionsByIDs(ctx context.Context, ids []string) ([]model.Section, error)
	ListPrerequisites(ctx context.Context) ([]model.Prerequisite, error)
	ListGroups(ctx context.Context) ([]model.PrerequisiteGroupMember, error)
	ListCore(ctx context.Context) ([]model.CoreCourse, error)
	// ReplaceAll 在一个事务内替换整个目录，保留仍存在班次的 section_id
	ReplaceAll(ctx context.Context, snapshot *CatalogSnapshot) error
}

// catalogRepo CatalogRepository 的 GORM 实现
type catalogRepo struct {
	db *gorm.DB
}

// NewCatalogRepo 创建 CatalogRepository 实例
func NewCatalogRepo(db *gorm.DB) CatalogRepository {
	return &catalogRepo{db: db}
}

func orderedSections(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, label ASC")
}

// Snapshot 在同一个只读 REPEATABLE READ 事务内读取，与并发的 ReplaceAll 互不交叉
func (r *catalogRepo) Snapshot(ctx context.Context) (*CatalogSnapshot, error) {
	snap := &CatalogSnapshot{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		courses, err := listCourses(tx)
		if err != nil {
			return fmt.Errorf("查询课程失败: %w", err)
		}
		snap.Courses = courses

		if err := tx.Order("course_number ASC, prereq_number ASC").Find(&snap.Prerequisites).Error; err != nil {
			return fmt.Errorf("查询先修关系失败: %w", err)
		}
		if err := tx.Order("course_number ASC, group_index ASC, prereq_number ASC").Find(&snap.Groups).Error; err != nil {
			return fmt.Errorf("查询先修表达式失败: %w", err)
		}
		if err := tx.Order("course_number ASC").Find(&snap.Core).Error; err != nil {
			return fmt.Errorf("查询核心课程失败: %w", err)
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func listCourses(db *gorm.DB) ([]model.Course, error) {
	var courses []model.Course
	err := db.
		Preload("Sections", orderedSections).
		Order("course_number ASC").
		Find(&courses).Error
	return courses, err
}

func (r *catalogRepo) ListCourses(ctx context.Context) ([]model.Course, error) {
	return listCourses(r.db.WithContext(ctx))
}

func (r *catalogRepo) GetCourse(ctx context.Context, number string) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Preload("Sections", orderedSections).
		Where("course_number = ?", number).
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *catalogRepo) ListSections(ctx context.Context) ([]model.Section, error) {
	var sections []model.Section
	err := r.db.WithContext(ctx).
		Order("course_number ASC, position ASC, label ASC").
		Find(&sections).Error
	return sections, err
}

func (r *catalogRepo) GetSection(ctx context.Context, id string) (*model.Section, error) {
	var section model.Section
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("section_id = ?", id).
		First(&section).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *catalogRepo) GetSectionsByIDs(ctx context.Context, ids []string) ([]model.Section, error) {
	if len(ids) == 0 {
		return []model.Section{}, nil
	}
	var sections []model.Section
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("section_id IN ?", ids).
		Find(&sections).Error
	return sections, err
}

func (r *catalogRepo) ListPrerequisites(ctx context.Context) ([]model.Prerequisite, error) {
	var edges []model.Prerequisite
	err := r.db.WithContext(ctx).
		Order("course_number ASC, prereq_number ASC").
		Find(&edges).Error
	return edges, err
}

func (r *catalogRepo) ListGroups(ctx context.Context) ([]model.PrerequisiteGroupMember, error) {
	var members []model.PrerequisiteGroupMember
	err := r.db.WithContext(ctx).
		Order("course_number ASC, group_index ASC, prereq_number ASC").
		Find(&members).Error
	return members, err
}

func (r *catalogRepo) ListCore(ctx context.Context) ([]model.CoreCourse, error) {
	var core []model.CoreCourse
	err := r.db.WithContext(ctx).Order("course_number ASC").Find(&core).Error
	return core, err
}

// sectionKey 班次在多次导入间的稳定标识
func sectionKey(courseNumber, label string) string {
	return courseNumber + "\x00" + label
}

// ReplaceAll 以新目录整体替换当前目录
//
// 课程按课程号、班次按 (课程号, 班次标签) 原地更新，已有班次沿用原 section_id，
// 因此已生成课表的班次关联保持不变。新目录中不再出现的课程与班次被删除；
// 若其中有班次仍被已生成课表引用，整个事务回滚并返回 pkgerrors.ErrReferenced。
func (r *catalogRepo) ReplaceAll(ctx context.Context, snapshot *CatalogSnapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []model.Section
		if err := tx.Select("section_id", "course_number", "label").Find(&current).Error; err != nil {
			return err
		}
		existing := make(map[string]string, len(current))
		for _, s := range current {
			existing[sectionKey(s.CourseNumber, s.Label)] = s.SectionID
		}

		// 先修关系、先修表达式与核心课程标记不被其他表引用，直接重建
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := global.Delete(&model.CoreCourse{}).Error; err != nil {
			return err
		}
		if err := global.Delete(&model.Prerequisite{}).Error; err != nil {
			return err
		}
		if err := global.Delete(&model.PrerequisiteGroupMember{}).Error; err != nil {
			return err
		}

		numbers := make([]string, 0, len(snapshot.Courses))
		keep := make([]string, 0, len(current))
		for i := range snapshot.Courses {
			course := snapshot.Courses[i]
			sections := course.Sections
			course.Sections = nil
			numbers = append(numbers, course.CourseNumber)

			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "course_number"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "description", "credits", "updated_at"}),
			}).Create(&course).Error; err != nil {
				return translateError(err)
			}

			for j := range sections {
				if id, ok := existing[sectionKey(sections[j].CourseNumber, sections[j].Label)]; ok {
					sections[j].SectionID = id
				}
				keep = append(keep, sections[j].SectionID)
			}
			if len(sections) > 0 {
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "section_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"days", "start_min", "end_min", "position", "updated_at"}),
				}).Create(&sections).Error; err != nil {
					return translateError(err)
				}
			}
		}

		// ── 清理不再出现的班次与课程 ──
		staleSections := global.Model(&model.Section{})
		if len(keep) > 0 {
			staleSections = staleSections.Where("section_id NOT IN ?", keep)
		}
		if err := staleSections.Delete(&model.Section{}).Error; err != nil {
			return translateError(err)
		}
		staleCourses := global.Model(&model.Course{})
		if len(numbers) > 0 {
			staleCourses = staleCourses.Where("course_number NOT IN ?", numbers)
		}
		if err := staleCourses.Delete(&model.Course{}).Error; err != nil {
			return translateError(err)
		}

		if len(snapshot.Prerequisites) > 0 {
			if err := tx.CreateInBatches(snapshot.Prerequisites, 200).Error; err != nil {
				return translateError(err)
			}
		}
		if len(snapshot.Groups) > 0 {
			if err := tx.CreateInBatches(snapshot.Groups, 200).Error; err != nil {
				return translateError(err)
			}
		}
		if len(snapshot.Core) > 0 {
			if err := tx.Create(&snapshot.Core).Error; err != nil {
				return translateError(err)
			}
		}
		return nil
	})
}
