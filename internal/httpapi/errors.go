package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/park285/chess-platform/internal/apperr"
	"github.com/park285/chess-platform/internal/obslog"
	"github.com/park285/chess-platform/pkg/chessdto"
)

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	if status >= http.StatusInternalServerError {
		obslog.L().Error("request_failed",
			zap.String("request_id", GetRequestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(status, chessdto.ErrorResponse{
		Error:  string(kind),
		Detail: apperr.MessageOf(err, http.StatusText(status)),
	})
}

// writeBindError reports an unparsable request body or query as 422.
func writeBindError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusUnprocessableEntity, chessdto.ErrorResponse{
		Error:  string(apperr.KindValidation),
		Detail: err.Error(),
	})
}
