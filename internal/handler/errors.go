package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler is the echo HTTPErrorHandler. Typed errors keep their status and message;
// untyped errors are logged and answered as a bare 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	log := logger.FromEcho(c)

	resp := ErrorResponse{Status: http.StatusInternalServerError, Code: apperror.CodeInternal, Message: "internal server error"}

	var httpErr *echo.HTTPError
	switch appErr := apperror.From(err); {
	case appErr != nil:
		resp = ErrorResponse{Status: appErr.Status, Code: appErr.Code, Message: appErr.Message}
		if appErr.Status >= http.StatusInternalServerError {
			log.Error("Request failed", zap.Error(err))
		} else if appErr.Err != nil {
			log.Debug("Request rejected", zap.Error(err))
		}
	case errors.As(err, &httpErr):
		resp.Status = httpErr.Code
		resp.Code = codeForStatus(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok {
			resp.Message = msg
		} else {
			resp.Message = http.StatusText(httpErr.Code)
		}
	default:
		log.Error("Unhandled error", zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(resp.Status)
	} else {
		err = c.JSON(resp.Status, resp)
	}
	if err != nil {
		log.Error("Failed to write error response", zap.Error(err))
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperror.CodeBadRequest
	case http.StatusUnauthorized:
		return apperror.CodeUnauthorized
	case http.StatusForbidden:
		return apperror.CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperror.CodeNotFound
	case http.StatusTooManyRequests:
		return apperror.CodeRateLimited
	}
	if status >= http.StatusInternalServerError {
		return apperror.CodeInternal
	}
	return apperror.CodeBadRequest
}

// notFoundOr maps a missing row to NotFound and wraps anything else as internal.
func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(message)
	}
	return apperror.Internal(err)
}

// isUniqueViolation reports whether err is a unique constraint failure on either driver.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
