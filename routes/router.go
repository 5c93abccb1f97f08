package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/punchclock/config"
	"github.com/cppla/punchclock/controllers"
	"github.com/cppla/punchclock/middleware"
	"github.com/cppla/punchclock/services"
	"github.com/cppla/punchclock/utils"
)

// Deps are the collaborators the router hands to controllers.
type Deps struct {
	Config       config.AppConfig
	Engine       *services.Engine
	Issuer       *utils.TokenIssuer
	Audit        controllers.AuditReader
	Users        controllers.UserWriter
	Logger       *zap.Logger
	AccessLogger *zap.Logger
	// Health reports whether the backing stores answer; nil means always healthy.
	Health func(ctx context.Context) error
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.App.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	access := d.AccessLogger
	if access == nil {
		access = d.Logger
	}
	r := gin.New()
	r.Use(utils.GinZap(access, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(d.Logger, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.App.AllowedOrigins) == 0 || (len(cfg.App.AllowedOrigins) == 1 && cfg.App.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.App.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		if d.Health != nil {
			hctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
			defer cancel()
			if err := d.Health(hctx); err != nil {
				d.Logger.Warn("health check failed", zap.Error(err))
				utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeInternal+1, "unhealthy")
				return
			}
		}
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	punchController := controllers.NewPunchController(d.Engine, d.Logger.Named("punch_api"))
	adminController := controllers.NewAdminController(d.Engine, d.Audit, d.Users, d.Logger.Named("admin_api"))
	profileController := controllers.NewProfileController(d.Engine, d.Logger.Named("profile_api"))
	limiter := middleware.NewRateLimiter(cfg.App.RateLimitPerMinute)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthRequired(d.Issuer))

	api.GET("/me", profileController.Me)

	api.POST("/punches", limiter.Middleware(), punchController.Submit)
	api.GET("/punches/today", punchController.Today)
	api.PATCH("/punches/:id", punchController.Edit)
	api.DELETE("/punches/:id", punchController.Delete)
	api.GET("/dashboard", punchController.Dashboard)
	api.GET("/weekly", punchController.Weekly)
	api.GET("/weekly/export", punchController.WeeklyExport)
	api.GET("/anomalies", punchController.Anomalies)

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/open-punches", adminController.OpenPunches)
	admin.POST("/orphans/scan", adminController.ScanOrphans)
	admin.POST("/users", adminController.CreateUser)
	admin.GET("/users/:id/audit", adminController.UserAudit)
	admin.GET("/punches/:id/audit", adminController.PunchAudit)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, "route not found")
	})

	return r
}
