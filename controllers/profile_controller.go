package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/punchclock/services"
	"github.com/cppla/punchclock/utils"
)

// ProfileController serves the caller's profile and effective work policy.
type ProfileController struct {
	engine *services.Engine
	logger *zap.Logger
}

func NewProfileController(engine *services.Engine, logger *zap.Logger) *ProfileController {
	return &ProfileController{engine: engine, logger: logger}
}

// Me returns the authenticated user's profile together with the policy in
// effect after applying the profile's overrides.
func (p *ProfileController) Me(ctx *gin.Context) {
	id, _, ok := actor(ctx)
	if !ok {
		return
	}
	user, err := p.engine.Users.FindUser(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, p.logger, err, nil)
		return
	}
	up, err := p.engine.Policy.ForUser(user)
	if err != nil {
		respondError(ctx, p.logger, err, nil)
		return
	}

	days := make([]string, 0, len(up.WorkingDays))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if up.WorkingDays[d] {
			days = append(days, d.String())
		}
	}
	utils.Success(ctx, gin.H{
		"user": user,
		"policy": gin.H{
			"timezone":           up.Timezone,
			"businessHoursStart": up.BusinessHoursStart.String(),
			"businessHoursEnd":   up.BusinessHoursEnd.String(),
			"shiftStartTime":     up.ShiftStartTime.String(),
			"graceMinutes":       up.GraceMinutes,
			"minimumWorkHours":   up.MinimumWorkHours,
			"dailyTargetMinutes": up.TargetMinutes,
			"workingDays":        days,
		},
	})
}
