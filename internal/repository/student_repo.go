package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"course-advisor/backend/internal/model"
	pkgerrors "course-advisor/backend/pkg/errors"
)

// StudentRepository 学生档案数据访问接口
type StudentRepository interface {
	// Create 创建学生，completed 非空时在同一事务内写入已修课程
	Create(ctx context.Context, student *model.Student, completed []string) error
	GetByID(ctx context.Context, id string) (*model.Student, error)
	GetByNetID(ctx context.Context, netID string) (*model.Student, error)
	List(ctx context.Context, offset, limit int) ([]model.Student, int64, error)
	Update(ctx context.Context, student *model.Student) error
	Delete(ctx context.Context, id string) error

	ListCompletions(ctx context.Context, studentID string) ([]model.CompletedCourse, error)
	AddCompletion(ctx context.Context, completion *model.CompletedCourse) error
	RemoveCompletion(ctx context.Context, studentID, courseNumber string) error
}

// studentRepo StudentRepository 的 GORM 实现
type studentRepo struct {
	db *gorm.DB
}

// NewStudentRepo 创建 StudentRepository 实例
func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) Create(ctx context.Context, student *model.Student, completed []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Completed").Create(student).Error; err != nil {
			return translateError(err)
		}
		if len(completed) == 0 {
			return nil
		}
		rows := make([]model.CompletedCourse, 0, len(completed))
		seen := make(map[string]struct{}, len(completed))
		for _, n := range completed {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			rows = append(rows, model.CompletedCourse{StudentID: student.StudentID, CourseNumber: n})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return translateError(err)
		}
		student.Completed = rows
		return nil
	})
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*model.Student, error) {
	var student model.Student
	err := r.db.WithContext(ctx).
		Preload("Completed", func(db *gorm.DB) *gorm.DB { return db.Order("course_number ASC") }).
		Where("student_id = ?", id).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) GetByNetID(ctx context.Context, netID string) (*model.Student, error) {
	var student model.Student
	err := r.db.WithContext(ctx).
		Where("net_id = ?", netID).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) List(ctx context.Context, offset, limit int) ([]model.Student, int64, error) {
	var students []model.Student
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Student{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at ASC").Offset(offset).Limit(limit).Find(&students).Error
	return students, total, err
}

// Update 基于 version 的乐观锁更新
func (r *studentRepo) Update(ctx context.Context, student *model.Student) error {
	oldVersion := student.Version
	result := r.db.WithContext(ctx).
		Model(&model.Student{}).
		Where("student_id = ? AND version = ?", student.StudentID, oldVersion).
		Updates(map[string]interface{}{
			"net_id":          student.NetID,
			"graduation_year": student.GraduationYear,
			"interests":       student.Interests,
			"availability":    student.Availability,
			"version":         oldVersion + 1,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	student.Version = oldVersion + 1
	return nil
}

// Delete 已修课程与生成的课表由外键级联删除
func (r *studentRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("student_id = ?", id).
		Delete(&model.Student{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *studentRepo) ListCompletions(ctx context.Context, studentID string) ([]model.CompletedCourse, error) {
	var rows []model.CompletedCourse
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("course_number ASC").
		Find(&rows).Error
	return rows, err
}

func (r *studentRepo) AddCompletion(ctx context.Context, completion *model.CompletedCourse) error {
	return translateError(r.db.WithContext(ctx).Create(completion).Error)
}

func (r *studentRepo) RemoveCompletion(ctx context.Context, studentID, courseNumber string) error {
	result := r.db.WithContext(ctx).
		Where("student_id = ? AND course_number = ?", studentID, courseNumber).
		Delete(&model.CompletedCourse{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
