package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/services"
	"github.com/cppla/punchclock/utils"
)

// AuditReader reads the audit trail.
type AuditReader interface {
	ListForPunch(ctx context.Context, punchID string) ([]models.AuditLog, error)
	ListForUser(ctx context.Context, userID uint, limit int) ([]models.AuditLog, error)
}

// UserWriter creates work profiles.
type UserWriter interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

// AdminController serves fleet-wide reports and user administration.
type AdminController struct {
	engine *services.Engine
	audit  AuditReader
	users  UserWriter
	logger *zap.Logger
}

func NewAdminController(engine *services.Engine, audit AuditReader, users UserWriter, logger *zap.Logger) *AdminController {
	return &AdminController{engine: engine, audit: audit, users: users, logger: logger}
}

type createUserRequest struct {
	Username               string   `json:"username" binding:"required,max=64"`
	Email                  string   `json:"email" binding:"omitempty,email"`
	Role                   string   `json:"role" binding:"omitempty,oneof=employee admin"`
	Timezone               string   `json:"timezone" binding:"max=64"`
	DailyWorkTargetMinutes int      `json:"dailyWorkTargetMinutes" binding:"gte=0,lte=1440"`
	WorkingDays            []string `json:"workingDays"`
	BusinessHoursStart     *string  `json:"businessHoursStart"`
	BusinessHoursEnd       *string  `json:"businessHoursEnd"`
	GraceMinutes           *int     `json:"graceMinutes" binding:"omitempty,gte=0"`
	ShiftStartTime         *string  `json:"shiftStartTime"`
	MinimumWorkHours       *float64 `json:"minimumWorkHours" binding:"omitempty,gte=0"`
}

// OpenPunches lists active users whose last punch today is IN.
func (a *AdminController) OpenPunches(ctx *gin.Context) {
	report, err := a.engine.Detector.OpenPunchCensus(ctx.Request.Context())
	if err != nil {
		respondError(ctx, a.logger, err, nil)
		return
	}
	utils.Success(ctx, report)
}

// ScanOrphans runs the orphan scan; ?apply=true annotates the flagged punches.
func (a *AdminController) ScanOrphans(ctx *gin.Context) {
	apply, _ := strconv.ParseBool(ctx.DefaultQuery("apply", "false"))
	report, err := a.engine.Detector.ScanOrphans(ctx.Request.Context(), !apply)
	if err != nil {
		respondError(ctx, a.logger, err, nil)
		return
	}
	utils.Success(ctx, report)
}

// PunchAudit returns the audit rows of one punch, oldest first.
func (a *AdminController) PunchAudit(ctx *gin.Context) {
	rows, err := a.audit.ListForPunch(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, a.logger, err, nil)
		return
	}
	utils.Success(ctx, gin.H{"entries": rows})
}

// UserAudit returns the most recent audit rows targeting a user.
func (a *AdminController) UserAudit(ctx *gin.Context) {
	userID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, "invalid user id")
		return
	}
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, "limit must be between 1 and 500")
		return
	}
	rows, err := a.audit.ListForUser(ctx.Request.Context(), uint(userID), limit)
	if err != nil {
		respondError(ctx, a.logger, err, nil)
		return
	}
	utils.Success(ctx, gin.H{"entries": rows})
}

// CreateUser adds a work profile after checking its overrides resolve.
func (a *AdminController) CreateUser(ctx *gin.Context) {
	var req createUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, utils.FormatBindingError(err))
		return
	}
	user := &models.User{
		Username:               strings.TrimSpace(req.Username),
		Email:                  req.Email,
		Role:                   req.Role,
		Active:                 true,
		Timezone:               req.Timezone,
		DailyWorkTargetMinutes: req.DailyWorkTargetMinutes,
		WorkingDays:            strings.Join(req.WorkingDays, ","),
		BusinessHoursStart:     req.BusinessHoursStart,
		BusinessHoursEnd:       req.BusinessHoursEnd,
		GraceMinutes:           req.GraceMinutes,
		ShiftStartTime:         req.ShiftStartTime,
		MinimumWorkHours:       req.MinimumWorkHours,
	}
	if _, err := a.engine.Policy.ForUser(user); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, err.Error())
		return
	}
	if _, err := a.users.FindByUsername(ctx.Request.Context(), user.Username); err == nil {
		utils.Error(ctx, http.StatusConflict, utils.CodeConflict, "username already taken")
		return
	} else if !services.IsNotFound(err) {
		respondError(ctx, a.logger, err, nil)
		return
	}
	if err := a.users.CreateUser(ctx.Request.Context(), user); err != nil {
		respondError(ctx, a.logger, err, nil)
		return
	}
	utils.Created(ctx, user)
}
