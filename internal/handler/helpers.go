package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/muhtawa-io/muhtawa/internal/chatbot"
	appErr "github.com/muhtawa-io/muhtawa/internal/pkg/errors"
	"github.com/muhtawa-io/muhtawa/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get("user_id")
	userID, _ := value.(string)
	return userID
}

func handleError(c *gin.Context, err error) {
	if err != nil {
		requestID, _ := c.Get("request_id")
		logutil.GetLogger(c.Request.Context()).Error("request failed",
			zap.Any("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("user_id", getUserID(c)),
			zap.Error(err),
		)
	}
	switch {
	case err == nil:
		return
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, "invalid", err.Error())
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, http.StatusConflict, "conflict", "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, http.StatusTooManyRequests, "too_many_requests", "too many requests")
	case errors.Is(err, appErr.ErrInternal):
		// Generation failures reach the user as the same generic message the
		// streaming path emits, regardless of mode.
		response.Error(c, http.StatusInternalServerError, "internal", chatbot.GenericErrorMessage)
	default:
		response.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
