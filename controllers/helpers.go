package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/punchclock/middleware"
	"github.com/cppla/punchclock/services"
	"github.com/cppla/punchclock/utils"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// actor returns the caller identity set by AuthRequired.
func actor(ctx *gin.Context) (uint, string, bool) {
	id, ok := getUserID(ctx)
	if !ok || id == 0 {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized+10, "unauthorized")
		return 0, "", false
	}
	return id, ctx.GetString(middleware.ContextRoleKey), true
}

// parseUintQuery reads an optional positive id from the query string.
func parseUintQuery(ctx *gin.Context, key string) (uint, bool) {
	raw := ctx.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, "invalid "+key)
		return 0, false
	}
	return uint(v), true
}

// respondError maps engine errors to status codes:
// validation 400, authorization 403, not found 404, configuration 500.
func respondError(ctx *gin.Context, logger *zap.Logger, err error, data interface{}) {
	var (
		ve *services.ValidationError
		ae *services.AuthorizationError
		ne *services.NotFoundError
		ce *services.ConfigurationError
	)
	switch {
	case errors.As(err, &ve):
		code := utils.CodeInvalidPunch
		switch {
		case errors.Is(err, services.ErrDoublePunch):
			code = utils.CodeDoublePunch
		case errors.Is(err, services.ErrSequence):
			code = utils.CodeSequence
		}
		if data == nil {
			data = gin.H{"errors": ve.Messages}
		}
		utils.ErrorWithData(ctx, http.StatusBadRequest, code, ve.Error(), data)
	case errors.As(err, &ae):
		utils.Error(ctx, http.StatusForbidden, utils.CodeForbidden, ae.Error())
	case errors.As(err, &ne):
		utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, ne.Error())
	case errors.As(err, &ce):
		logger.Error("configuration error", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, utils.CodeConfiguration, ce.Error())
	case errors.Is(err, utils.ErrLockTimeout), errors.Is(err, context.DeadlineExceeded):
		utils.Error(ctx, http.StatusServiceUnavailable, utils.CodeInternal+3, "user is busy, retry")
	default:
		logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, utils.CodeInternal, "internal error")
	}
}
