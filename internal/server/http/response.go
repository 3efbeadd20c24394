package http

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/gin-gonic/gin"
)

// apiResponse is the envelope of every JSON reply.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func ok(c *gin.Context, status int, data any, msg string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, apiResponse{StatusCode: status, Data: data, Message: msg, Success: status < 400})
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch common.KindOf(err) {
	case common.ErrValidation:
		return http.StatusBadRequest
	case common.ErrInvalidCredentials, common.ErrUnauthenticated, common.ErrInvalidToken,
		common.ErrTokenExpired, common.ErrUnknownIdentity:
		return http.StatusUnauthorized
	case common.ErrAlreadyExists:
		return http.StatusConflict
	case common.ErrForbidden:
		return http.StatusForbidden
	case common.ErrorNotFound:
		return http.StatusNotFound
	case common.ErrInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// message is what the client sees. Infrastructure details stay in the log.
func message(err error) string {
	var oe *common.OpError
	if errors.As(err, &oe) {
		switch {
		case oe.Kind == common.ErrInfrastructure:
			return "service unavailable"
		case oe.Msg != "":
			return oe.Kind.Error() + ": " + oe.Msg
		default:
			return oe.Kind.Error()
		}
	}
	return "internal error"
}

func (s *HTTPServer) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err.Error())
	}
	c.AbortWithStatusJSON(status, apiResponse{StatusCode: status, Data: nil, Message: message(err)})
}

func (s *HTTPServer) badRequest(c *gin.Context, msg string) {
	s.fail(c, common.NewError("http.bind", common.ErrValidation, msg))
}
