package handler

import (
	"errors"
	"net/http"

	"commissionledger/internal/logger"
	"commissionledger/internal/service"
	"commissionledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized
	case service.IsValidation(err):
		return http.StatusBadRequest
	case service.IsNotFound(err):
		return http.StatusNotFound
	case service.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, service.ErrProviderUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope. Internal errors are logged and their
// message is not exposed.
func respondError(c *gin.Context, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		log := logger.WithComponent("http")
		log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Msg("request failed")
		msg = "Internal server error"
	}
	c.JSON(code, response.Error(code, msg))
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}
