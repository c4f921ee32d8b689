package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/service"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportRoster 导出区间内的课程名单
// GET /api/v1/export/roster?owner_type=studio&owner_id=xxx&from=2025-12-22&to=2025-12-28
func (h *ExportHandler) ExportRoster(c *gin.Context) {
	scope, ok := bindScopeQuery(c)
	if !ok {
		return
	}
	var rng dto.DateRangeRequest
	if err := c.ShouldBindQuery(&rng); err != nil {
		badRequest(c, err)
		return
	}
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportRoster(c.Request.Context(), scope, rng.From, rng.To, caller)
	if err != nil {
		if errors.Is(err, service.ErrExportGenerateFail) {
			_ = c.Error(err)
			response.InternalError(c)
			return
		}
		writeError(c, err)
		return
	}

	response.Attachment(c, filename, xlsxContentType, buf.Bytes())
}
