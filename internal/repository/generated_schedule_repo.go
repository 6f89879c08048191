package repository

import (
	"context"

	"gorm.io/gorm"

	"course-advisor/backend/internal/model"
)

// GeneratedScheduleRepository 生成课表数据访问接口
type GeneratedScheduleRepository interface {
	// CreateWithSections 在一个事务内写入课表及其有序班次关联
	CreateWithSections(ctx context.Context, schedule *model.GeneratedSchedule, sectionIDs []string) error
	GetByID(ctx context.Context, id string) (*model.GeneratedSchedule, error)
	ListByStudent(ctx context.Context, studentID string, offset, limit int) ([]model.GeneratedSchedule, int64, error)
	Delete(ctx context.Context, id string) error
}

// generatedScheduleRepo GeneratedScheduleRepository 的 GORM 实现
type generatedScheduleRepo struct {
	db *gorm.DB
}

// NewGeneratedScheduleRepo 创建 GeneratedScheduleRepository 实例
func NewGeneratedScheduleRepo(db *gorm.DB) GeneratedScheduleRepository {
	return &generatedScheduleRepo{db: db}
}

func (r *generatedScheduleRepo) CreateWithSections(ctx context.Context, schedule *model.GeneratedSchedule, sectionIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		schedule.Sections = nil
		if err := tx.Create(schedule).Error; err != nil {
			return err
		}
		if len(sectionIDs) == 0 {
			return nil
		}
		links := make([]model.ScheduleSection, len(sectionIDs))
		for i, id := range sectionIDs {
			links[i] = model.ScheduleSection{
				ScheduleID: schedule.ScheduleID,
				SectionID:  id,
				Position:   i,
			}
		}
		if err := tx.Create(&links).Error; err != nil {
			return translateError(err)
		}
		schedule.Sections = links
		return nil
	})
}

func (r *generatedScheduleRepo) GetByID(ctx context.Context, id string) (*model.GeneratedSchedule, error) {
	var schedule model.GeneratedSchedule
	err := r.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Sections.Section").
		Preload("Sections.Section.Course").
		Where("schedule_id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *generatedScheduleRepo) ListByStudent(ctx context.Context, studentID string, offset, limit int) ([]model.GeneratedSchedule, int64, error) {
	var schedules []model.GeneratedSchedule
	var total int64

	db := r.db.WithContext(ctx).Model(&model.GeneratedSchedule{}).Where("student_id = ?", studentID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&schedules).Error
	return schedules, total, err
}

func (r *generatedScheduleRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("schedule_id = ?", id).
		Delete(&model.GeneratedSchedule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
