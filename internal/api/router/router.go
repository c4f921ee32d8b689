package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mxrcabrera/pilates-booking-sub001/config"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/api/handler"
	"github.com/mxrcabrera/pilates-booking-sub001/internal/api/middleware"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/jwt"
	"github.com/mxrcabrera/pilates-booking-sub001/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// db 仅用于健康检查，可为空
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimitBytes))

	// ── 健康检查 ──
	r.GET("/health", healthCheck(db))

	staff := []string{jwt.RoleInstructor, jwt.RoleStudioAdmin}
	bookingLimit := middleware.RateLimit(rdb, cfg.RateLimit.BookingPerMinute, time.Minute)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, rdb))
	{
		v1.GET("/me", h.Session.Me)
		v1.POST("/auth/logout", h.Session.Logout)

		// 学员端
		learner := v1.Group("")
		learner.Use(middleware.RoleAuth(jwt.RoleLearner))
		{
			learner.GET("/scopes", h.Slot.ListScopes)
			learner.GET("/slots", h.Slot.ListSlots)
			learner.GET("/me/calendar.ics", h.Calendar.Feed)

			bookings := learner.Group("/bookings")
			{
				bookings.POST("", bookingLimit, h.Booking.Book)
				bookings.GET("/me", h.Booking.ListMine)
				bookings.DELETE("/:id", h.Booking.Cancel)
			}

			waitlist := learner.Group("/waitlist")
			{
				waitlist.POST("", bookingLimit, h.Waitlist.Join)
				waitlist.GET("/me", h.Waitlist.ListMine)
				waitlist.DELETE("/:id", h.Waitlist.Leave)
			}
		}

		// 场馆端（教练 / 工作室管理员，具体范围由 Service 层鉴权）
		owner := v1.Group("")
		owner.Use(middleware.RoleAuth(staff...))
		{
			owner.GET("/settings", h.Setting.Get)
			owner.PUT("/settings", h.Setting.Update)

			windows := owner.Group("/windows")
			{
				windows.GET("", h.Availability.ListWindows)
				windows.POST("", h.Availability.CreateWindow)
				windows.DELETE("/:id", h.Availability.DeleteWindow)
			}

			blocked := owner.Group("/blocked-dates")
			{
				blocked.GET("", h.Availability.ListBlockedDates)
				blocked.POST("", h.Availability.CreateBlockedDate)
				blocked.POST("/import", h.Availability.ImportBlockedDates)
				blocked.DELETE("/:id", h.Availability.DeleteBlockedDate)
			}

			classes := owner.Group("/classes")
			{
				classes.POST("/:id/cancel", h.Booking.OwnerCancel)
				classes.PUT("/:id/attendance", h.Booking.MarkAttendance)
			}

			series := owner.Group("/series")
			{
				series.POST("", h.Series.Generate)
				series.GET("/:id", h.Series.Get)
				series.PUT("/:id", h.Series.Edit)
			}

			owner.GET("/export/roster", h.Export.ExportRoster)
		}
	}

	return r
}

func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
