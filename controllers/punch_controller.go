package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/punchclock/exports"
	"github.com/cppla/punchclock/models"
	"github.com/cppla/punchclock/services"
	"github.com/cppla/punchclock/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// PunchController serves punch submission, the dashboard and punch corrections.
type PunchController struct {
	engine *services.Engine
	logger *zap.Logger
}

// NewPunchController creates a new controller instance.
func NewPunchController(engine *services.Engine, logger *zap.Logger) *PunchController {
	return &PunchController{engine: engine, logger: logger}
}

type submitPunchRequest struct {
	PunchType string     `json:"punchType" binding:"required,oneof=IN OUT"`
	PunchTime *time.Time `json:"punchTime"`
	UserID    uint       `json:"userId"`
	Source    string     `json:"source" binding:"omitempty,oneof=NFC MANUAL ADMIN"`
	Notes     string     `json:"notes" binding:"max=500"`
}

type editPunchRequest struct {
	PunchTime *time.Time `json:"punchTime"`
	PunchType *string    `json:"punchType" binding:"omitempty,oneof=IN OUT"`
	Reason    string     `json:"reason" binding:"max=500"`
}

type deletePunchRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// Submit records a punch for the caller, or for userId when the caller is an admin.
func (p *PunchController) Submit(ctx *gin.Context) {
	actorID, role, ok := actor(ctx)
	if !ok {
		return
	}
	var req submitPunchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, utils.FormatBindingError(err))
		return
	}

	result, err := p.engine.Punches.Submit(ctx.Request.Context(), services.SubmitRequest{
		ActorID:   actorID,
		ActorRole: role,
		UserID:    req.UserID,
		PunchType: req.PunchType,
		PunchTime: req.PunchTime,
		Source:    req.Source,
		Notes:     req.Notes,
	})
	if err != nil {
		var data interface{}
		if len(result.Validation.Errors) > 0 {
			data = result.Validation
		}
		respondError(ctx, p.logger, err, data)
		return
	}
	utils.Created(ctx, result)
}

// Today lists today's punches in the user's timezone.
func (p *PunchController) Today(ctx *gin.Context) {
	user, ok := p.targetUser(ctx)
	if !ok {
		return
	}
	punches, _, err := p.engine.Aggregator.TodayPunches(ctx.Request.Context(), user)
	if err != nil {
		respondError(ctx, p.logger, err, nil)
		return
	}
	if punches == nil {
		punches = []models.Punch{}
	}
	utils.Success(ctx, gin.H{"punches": punches, "nextPunchType": services.NextPunchType(punches)})
}

// Dashboard returns today's snapshot.
func (p *PunchController) Dashboard(ctx *gin.Context) {
	user, ok := p.targetUser(ctx)
	if !ok {
		return
	}
	snap, err := p.engine.Aggregator.GetDailySnapshot(ctx.Request.Context(), user)
	if err != nil {
		respondError(ctx, p.logger, err, nil)
		return
	}
	utils.Success(ctx, snap)
}

// Weekly returns the summary of the week selected by offset.
func (p *PunchController) Weekly(ctx *gin.Context) {
	summary, ok := p.weekly(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, summary)
}

// WeeklyExport streams the weekly summary as an xlsx workbook.
func (p *PunchController) WeeklyExport(ctx *gin.Context) {
	summary, ok := p.weekly(ctx)
	if !ok {
		return
	}
	f, err := exports.WeeklyWorkbook(summary)
	if err != nil {
		p.logger.Error("weekly export failed", zap.Uint("user_id", summary.UserID), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, utils.CodeExportFailed, "failed to build export")
		return
	}
	defer func() { _ = f.Close() }()
	buf, err := f.WriteToBuffer()
	if err != nil {
		p.logger.Error("weekly export failed", zap.Uint("user_id", summary.UserID), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, utils.CodeExportFailed, "failed to build export")
		return
	}
	ctx.Header("Content-Disposition", `attachment; filename="`+exports.ExportFilename(summary)+`"`)
	ctx.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Anomalies runs the detector over today's punches.
func (p *PunchController) Anomalies(ctx *gin.Context) {
	user, ok := p.targetUser(ctx)
	if !ok {
		return
	}
	issues, err := p.engine.Detector.DetectForUser(ctx.Request.Context(), user)
	if err != nil {
		respondError(ctx, p.logger, err, nil)
		return
	}
	utils.Success(ctx, gin.H{"anomalies": issues})
}

// Edit corrects the time or type of a punch.
func (p *PunchController) Edit(ctx *gin.Context) {
	actorID, role, ok := actor(ctx)
	if !ok {
		return
	}
	var req editPunchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, utils.FormatBindingError(err))
		return
	}
	punch, err := p.engine.Punches.EditPunch(ctx.Request.Context(), services.EditRequest{
		ActorID:   actorID,
		ActorRole: role,
		PunchID:   ctx.Param("id"),
		PunchTime: req.PunchTime,
		PunchType: req.PunchType,
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(ctx, p.logger, err, nil)
		return
	}
	utils.Success(ctx, punch)
}

// Delete removes a punch. The reason may come in the body or as ?reason=.
func (p *PunchController) Delete(ctx *gin.Context) {
	actorID, role, ok := actor(ctx)
	if !ok {
		return
	}
	var req deletePunchRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, utils.FormatBindingError(err))
			return
		}
	}
	if req.Reason == "" {
		req.Reason = ctx.Query("reason")
	}
	err := p.engine.Punches.DeletePunch(ctx.Request.Context(), services.DeleteRequest{
		ActorID:   actorID,
		ActorRole: role,
		PunchID:   ctx.Param("id"),
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(ctx, p.logger, err, nil)
		return
	}
	utils.Success(ctx, gin.H{"deleted": ctx.Param("id")})
}

func (p *PunchController) weekly(ctx *gin.Context) (services.WeeklySummary, bool) {
	offset := 0
	if raw := ctx.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, "offset must be an integer")
			return services.WeeklySummary{}, false
		}
		offset = v
	}
	user, ok := p.targetUser(ctx)
	if !ok {
		return services.WeeklySummary{}, false
	}
	summary, err := p.engine.Aggregator.GetWeeklySummary(ctx.Request.Context(), user, offset)
	if err != nil {
		respondError(ctx, p.logger, err, nil)
		return services.WeeklySummary{}, false
	}
	return summary, true
}

// targetUser loads the caller, or ?userId= when the caller is an admin.
func (p *PunchController) targetUser(ctx *gin.Context) (*models.User, bool) {
	actorID, role, ok := actor(ctx)
	if !ok {
		return nil, false
	}
	userID, ok := parseUintQuery(ctx, "userId")
	if !ok {
		return nil, false
	}
	if userID == 0 {
		userID = actorID
	}
	if userID != actorID && !strings.EqualFold(role, models.RoleAdmin) {
		utils.Error(ctx, http.StatusForbidden, utils.CodeForbidden, "admin role required")
		return nil, false
	}
	user, err := p.engine.Users.FindUser(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, p.logger, err, nil)
		return nil, false
	}
	return user, true
}
