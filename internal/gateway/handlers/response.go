package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	pkgerrors "syntra-settlement/pkg/errors"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

// writeError maps the typed service errors onto HTTP statuses. Anything
// untyped is logged and reported as an internal error.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		validation   *pkgerrors.ErrValidation
		notFound     *pkgerrors.ErrNotFound
		conflict     *pkgerrors.ErrConflict
		insufficient *pkgerrors.ErrInsufficientPoints
		external     *pkgerrors.ErrExternalService
	)

	switch {
	case errors.As(err, &validation):
		resp := errorResponse(validation.Error())
		if len(validation.Fields) > 0 {
			resp.Data = validation.Fields
		}
		c.JSON(http.StatusBadRequest, resp)
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, errorResponse(notFound.Error()))
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, errorResponse(conflict.Error()))
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, errorResponse("Insufficient points balance"))
	case errors.As(err, &external):
		logger.Error("External service error", zap.Error(err))
		c.JSON(http.StatusBadGateway, errorResponse("External service unavailable"))
	default:
		logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
	}
}
