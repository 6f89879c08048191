package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"course-advisor/backend/internal/dto"
	"course-advisor/backend/internal/service"
	"course-advisor/backend/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportSchedule 导出课表
// GET /api/v1/schedules/student/:id/:scheduleId/export?format=xlsx|ics
func (h *ExportHandler) ExportSchedule(c *gin.Context) {
	id := c.Param("id")
	if !requireSelfOrAdmin(c, id) {
		return
	}
	var req dto.ExportScheduleRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "format 仅支持 xlsx 或 ics")
		return
	}

	ctx := c.Request.Context()
	scheduleID := c.Param("scheduleId")

	if req.Format == "ics" {
		buf, filename, err := h.exportSvc.ExportICS(ctx, id, scheduleID)
		if err != nil {
			h.handleExportError(c, err)
			return
		}
		response.Attachment(c, service.ContentTypeICS, filename, buf.Bytes())
		return
	}

	buf, filename, err := h.exportSvc.ExportXLSX(ctx, id, scheduleID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}
	c.Header("Content-Description", "File Transfer")
	response.Attachment(c, service.ContentTypeXLSX, filename, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 13101, "课表不存在")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
