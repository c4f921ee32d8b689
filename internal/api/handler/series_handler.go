package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/dto"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/service"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

// SeriesHandler 循环课程 HTTP 处理器
type SeriesHandler struct {
	seriesSvc service.SeriesService
}

// NewSeriesHandler 创建 SeriesHandler
func NewSeriesHandler(seriesSvc service.SeriesService) *SeriesHandler {
	return &SeriesHandler{seriesSvc: seriesSvc}
}

// Generate 生成循环课程
// POST /api/v1/series
func (h *SeriesHandler) Generate(c *gin.Context) {
	var req dto.CreateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.seriesSvc.Generate(c.Request.Context(), &req, caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, result)
}

// Get 系列详情
// GET /api/v1/series/:id
func (h *SeriesHandler) Get(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.seriesSvc.Get(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, result)
}

// Edit 批量修改系列的星期与时刻
// PUT /api/v1/series/:id
func (h *SeriesHandler) Edit(c *gin.Context) {
	var req dto.EditSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.seriesSvc.Edit(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, result)
}
