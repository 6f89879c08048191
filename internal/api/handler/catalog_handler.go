package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"course-advisor/backend/internal/dto"
	"course-advisor/backend/internal/service"
	"course-advisor/backend/pkg/response"
)

// CatalogHandler 课程目录 HTTP 处理器
type CatalogHandler struct {
	svc service.CatalogService
}

// NewCatalogHandler 创建 CatalogHandler
func NewCatalogHandler(svc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// ListCourses 课程列表
// GET /api/v1/courses?bucket=core|elective|graduate&keyword=xxx
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	var req dto.CourseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "查询参数无效")
		return
	}
	list, err := h.svc.ListCourses(c.Request.Context(), &req)
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

// GetCourse 课程详情，number 可为 "CS 2110" 或 "2110"
// GET /api/v1/courses/:number
func (h *CatalogHandler) GetCourse(c *gin.Context) {
	result, err := h.svc.GetCourse(c.Request.Context(), c.Param("number"))
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, result)
}

// ListSections GET /api/v1/courses/sections
func (h *CatalogHandler) ListSections(c *gin.Context) {
	list, err := h.svc.ListSections(c.Request.Context())
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

// GetSection GET /api/v1/courses/sections/:id
func (h *CatalogHandler) GetSection(c *gin.Context) {
	result, err := h.svc.GetSection(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, result)
}

// ListCore GET /api/v1/courses/core
func (h *CatalogHandler) ListCore(c *gin.Context) {
	result, err := h.svc.ListCore(c.Request.Context())
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, result)
}

// Import 上传 YAML 目录并整体替换（管理员）
// POST /api/v1/courses/import
//
// 支持 multipart/form-data (field="file") 或直接提交 YAML 请求体
func (h *CatalogHandler) Import(c *gin.Context) {
	var body io.Reader = c.Request.Body
	if file, _, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()
		body = file
	}

	data, err := io.ReadAll(body)
	if err != nil {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}

	result, err := h.svc.Import(c.Request.Context(), data)
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.Created(c, result)
}

func handleCatalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 14001, "课程不存在")
	case errors.Is(err, service.ErrSectionNotFound):
		response.NotFound(c, 14002, "班次不存在")
	case errors.Is(err, service.ErrCatalogInUse):
		response.ErrorWithDetails(c, http.StatusConflict, 14004, "目录导入被拒绝", "新目录移除了已生成课表仍在使用的班次")
	case errors.Is(err, service.ErrInvalidSeed):
		response.ErrorWithDetails(c, http.StatusBadRequest, 14003, "目录文件格式无效", err.Error())
	default:
		response.InternalError(c)
	}
}
