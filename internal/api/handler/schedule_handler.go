package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"course-advisor/backend/internal/dto"
	"course-advisor/backend/internal/service"
	"course-advisor/backend/pkg/response"
)

// ScheduleHandler 课表模块 HTTP 处理器
type ScheduleHandler struct {
	svc service.ScheduleService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(svc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{svc: svc}
}

// Generate 生成课表
// POST /api/v1/schedules/generate
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "student_id 无效")
		return
	}
	if !requireSelfOrAdmin(c, req.StudentID) {
		return
	}

	result, err := h.svc.Generate(c.Request.Context(), &req)
	if err != nil {
		handleScheduleError(c, err)
		return
	}
	response.Created(c, result)
}

// ListByStudent 学生的历史课表（不含班次）
// GET /api/v1/schedules/student/:id
func (h *ScheduleHandler) ListByStudent(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "分页参数无效")
		return
	}

	list, total, err := h.svc.ListByStudent(c.Request.Context(), id, &page)
	if err != nil {
		handleScheduleError(c, err)
		return
	}
	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}

// Get 课表详情
// GET /api/v1/schedules/student/:id/:scheduleId
func (h *ScheduleHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	result, err := h.svc.Get(c.Request.Context(), id, c.Param("scheduleId"))
	if err != nil {
		handleScheduleError(c, err)
		return
	}
	response.OK(c, result)
}

// Delete 删除课表
// DELETE /api/v1/schedules/student/:id/:scheduleId
func (h *ScheduleHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, c.Param("scheduleId")); err != nil {
		handleScheduleError(c, err)
		return
	}
	response.OK(c, nil)
}

func handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 12001, "学生不存在")
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 13101, "课表不存在")
	case errors.Is(err, service.ErrNoSectionsMatch):
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, 13102,
			"没有同时满足先修要求与空闲时段的班次", "请检查已修课程与每周空闲时段")
	default:
		response.InternalError(c)
	}
}
