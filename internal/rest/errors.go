package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/ciel/api"
	"github.com/dfryer1193/ciel/gallery/domain"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrInvalidTag) {
		return http.StatusBadRequest
	}

	switch domain.KindOf(err) {
	case domain.ErrConstraint:
		return http.StatusUnprocessableEntity
	case domain.ErrFetch:
		return http.StatusBadGateway
	case domain.ErrUnsupportedType:
		return http.StatusUnsupportedMediaType
	case domain.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, api.ErrorResponse{Error: err.Error()})
}

func respondBadRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
}
