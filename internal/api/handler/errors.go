package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mxrcabrera/pilates-booking-sub001/internal/api/middleware"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/api/validation"
	pkgerrors "github.com/mxrcabrera/pilates-booking-sub001/pkg/errors"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/response"
)

// ── 业务错误 → HTTP 响应 ──

type kindMapping struct {
	status int
	code   int
}

var kindStatus = map[pkgerrors.Kind]kindMapping{
	pkgerrors.KindInvalidInput:         {http.StatusBadRequest, 10001},
	pkgerrors.KindUnauthorized:         {http.StatusForbidden, 10003},
	pkgerrors.KindNotFound:             {http.StatusNotFound, 20001},
	pkgerrors.KindAlreadyBooked:        {http.StatusConflict, 20101},
	pkgerrors.KindSlotFull:             {http.StatusConflict, 20102},
	pkgerrors.KindSlotNotFull:          {http.StatusConflict, 20103},
	pkgerrors.KindInsufficientLeadTime: {http.StatusUnprocessableEntity, 20201},
	pkgerrors.KindDateBlocked:          {http.StatusUnprocessableEntity, 20202},
	pkgerrors.KindSlotNotOffered:       {http.StatusUnprocessableEntity, 20203},
	pkgerrors.KindWeeklyQuotaExceeded:  {http.StatusUnprocessableEntity, 20204},
	pkgerrors.KindPastClass:            {http.StatusUnprocessableEntity, 20205},
}

// writeError 统一处理 Service 返回的错误
func writeError(c *gin.Context, err error) {
	var appErr *pkgerrors.AppError
	switch {
	case errors.As(err, &appErr):
		m, ok := kindStatus[appErr.Kind]
		if !ok {
			m = kindMapping{http.StatusBadRequest, 10001}
		}
		response.Reject(c, m.status, m.code, string(appErr.Kind), appErr.Message, appErr.Detail)
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Reject(c, http.StatusConflict, 20104, "VersionConflict", err.Error(), "")
	case errors.Is(err, pkgerrors.ErrTransientConflict):
		response.ServiceUnavailable(c, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}

// badRequest 请求参数绑定失败
func badRequest(c *gin.Context, err error) {
	if middleware.IsBodyTooLarge(err) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", validation.Describe(err))
}
