package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"course-advisor/backend/internal/dto"
	"course-advisor/backend/internal/service"
	pkgerrors "course-advisor/backend/pkg/errors"
	"course-advisor/backend/pkg/response"
)

// StudentHandler 学生档案 HTTP 处理器
type StudentHandler struct {
	svc service.StudentService
}

// NewStudentHandler 创建 StudentHandler
func NewStudentHandler(svc service.StudentService) *StudentHandler {
	return &StudentHandler{svc: svc}
}

// ── 档案 ──

// List 学生列表（管理员）
// GET /api/v1/students
func (h *StudentHandler) List(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "分页参数无效")
		return
	}

	list, total, err := h.svc.List(c.Request.Context(), &page)
	if err != nil {
		handleStudentError(c, err)
		return
	}
	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}

// Get 学生详情
// GET /api/v1/students/:id
func (h *StudentHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	result, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleStudentError(c, err)
		return
	}
	response.OK(c, result)
}

// Update 更新学生档案
// PATCH /api/v1/students/:id
func (h *StudentHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	var req dto.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
		return
	}
	result, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		handleStudentError(c, err)
		return
	}
	response.OK(c, result)
}

// Delete 删除学生，已修课程与课表级联删除
// DELETE /api/v1/students/:id
func (h *StudentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		handleStudentError(c, err)
		return
	}
	response.OK(c, nil)
}

// ── 已修课程 ──

// ListCompletions GET /api/v1/students/:id/completions
func (h *StudentHandler) ListCompletions(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	result, err := h.svc.ListCompletions(c.Request.Context(), id)
	if err != nil {
		handleStudentError(c, err)
		return
	}
	response.OK(c, result)
}

// AddCompletion POST /api/v1/students/:id/completions
func (h *StudentHandler) AddCompletion(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	var req dto.AddCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 12004, "课程号格式无效，应形如 CS 2110")
		return
	}
	result, err := h.svc.AddCompletion(c.Request.Context(), id, &req)
	if err != nil {
		handleStudentError(c, err)
		return
	}
	response.Created(c, result)
}

// RemoveCompletion DELETE /api/v1/students/:id/completions/:number
func (h *StudentHandler) RemoveCompletion(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	if err := h.svc.RemoveCompletion(c.Request.Context(), id, c.Param("number")); err != nil {
		handleStudentError(c, err)
		return
	}
	response.OK(c, nil)
}

// ── 空闲时段 ──

// GetAvailability GET /api/v1/students/:id/availability
func (h *StudentHandler) GetAvailability(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	result, err := h.svc.GetAvailability(c.Request.Context(), id)
	if err != nil {
		handleStudentError(c, err)
		return
	}
	response.OK(c, result)
}

// SetAvailability PUT /api/v1/students/:id/availability
func (h *StudentHandler) SetAvailability(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	var req dto.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 12005, "空闲时段应为 168 位 0/1 字符串")
		return
	}
	result, err := h.svc.SetAvailability(c.Request.Context(), id, &req)
	if err != nil {
		handleStudentError(c, err)
		return
	}
	response.OK(c, result)
}

// ImportAvailabilityICS 导入 ICS 忙碌时段
// POST /api/v1/students/:id/availability/ics
//
// 支持两种方式：
//   - 文件上传: multipart/form-data, field="file"
//   - 直接提交: Content-Type: text/calendar
func (h *StudentHandler) ImportAvailabilityICS(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}

	var body io.Reader = c.Request.Body
	if file, _, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()
		body = file
	} else if c.ContentType() != "text/calendar" {
		response.BadRequest(c, 12006, "请上传 ICS 文件")
		return
	}

	result, err := h.svc.ImportAvailabilityICS(c.Request.Context(), id, body)
	if err != nil {
		handleStudentError(c, err)
		return
	}
	response.OK(c, result)
}

func handleStudentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 12001, "学生不存在")
	case errors.Is(err, service.ErrEmptyUpdate):
		response.BadRequest(c, 12002, "至少需要提供一个更新字段")
	case errors.Is(err, service.ErrNetIDTaken):
		response.Conflict(c, 11002, "该 NetID 已被注册")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 12003, "数据已被其他操作修改，请刷新后重试")
	case errors.Is(err, service.ErrInvalidCourseNumber):
		response.BadRequest(c, 12004, "课程号格式无效，应形如 CS 2110")
	case errors.Is(err, service.ErrInvalidICS):
		response.ErrorWithDetails(c, http.StatusBadRequest, 12006, "ICS 文件无效", err.Error())
	case errors.Is(err, service.ErrCompletionExists):
		response.Conflict(c, 12007, "该课程已在已修列表中")
	case errors.Is(err, service.ErrCompletionNotFound):
		response.NotFound(c, 12008, "已修列表中不存在该课程")
	default:
		response.InternalError(c)
	}
}
