package handler

import (
	"net/http"

	"attendance-import-backend/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type envelope struct {
	OK     bool           `json:"ok"`
	Data   any            `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
	Issues []apperr.Issue `json:"issues,omitempty"`
}

func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{OK: true, Data: data})
}

// fail writes the error envelope with the status of the error's kind.
// Unclassified and upstream failures are logged and reported generically.
func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, envelope{OK: false, Error: msg, Issues: apperr.IssuesOf(err)})
}
