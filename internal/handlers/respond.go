package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ceylontrails/tours-backend/internal/models"
)

// statusForKind maps domain error kinds to HTTP status codes.
var statusForKind = map[models.ErrorKind]int{
	models.ErrKindValidationFailed:       http.StatusBadRequest,
	models.ErrKindNotFound:               http.StatusNotFound,
	models.ErrKindInvalidStateTransition: http.StatusConflict,
	models.ErrKindCapacityExceeded:       http.StatusConflict,
	models.ErrKindConflict:               http.StatusConflict,
}

// respondError translates an error into a JSON response. Domain errors map
// by kind; anything else is a 500 with a generic message so internals never
// leak to clients.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	respondErrorWith(c, logger, err, nil)
}

// respondErrorWith allows a handler to override the status for specific
// kinds, e.g. cancellation reports an invalid transition as a plain 400.
func respondErrorWith(c *gin.Context, logger *logrus.Logger, err error, overrides map[models.ErrorKind]int) {
	kind, ok := models.KindOf(err)
	if !ok {
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	status := statusForKind[kind]
	if overrides != nil {
		if s, found := overrides[kind]; found {
			status = s
		}
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := gin.H{
		"error": string(kind),
	}
	var domainErr *models.DomainError
	if errors.As(err, &domainErr) {
		body["message"] = domainErr.Message
		if len(domainErr.Fields) > 0 {
			body["fields"] = domainErr.Fields
		}
	}
	c.JSON(status, body)
}
