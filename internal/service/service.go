package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"course-advisor/backend/config"
	"course-advisor/backend/internal/planner"
	"course-advisor/backend/internal/repository"
	"course-advisor/backend/pkg/jwt"
)

// TokenBlacklist 登出时吊销 Token，Redis 不可用时传 nil
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// Service 所有 Service 的聚合入口
type Service struct {
	Auth     AuthService
	Student  StudentService
	Catalog  CatalogService
	Schedule ScheduleService
	Export   ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	engine *planner.Planner,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:     NewAuthService(cfg, repo, jwtMgr, blacklist, logger),
		Student:  NewStudentService(cfg, repo, logger),
		Catalog:  NewCatalogService(cfg, repo, logger),
		Schedule: NewScheduleService(repo, engine, logger),
		Export:   NewExportService(cfg, repo, logger),
	}
}

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
