package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/falerh"
)

// Employees never learn whether a conversation they cannot reach exists.
const notPossible = "operation not possible"

type errorBody struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondError(c *gin.Context, status int, typ, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Type: typ, Message: msg}})
}

// respondFailure maps service errors. Validation problems are the caller's
// fault; anything else is logged by the request logger and hidden.
func respondFailure(c *gin.Context, err error) {
	var verr *falerh.ValidationError
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorBody{
			Type:    "validation_error",
			Message: "invalid input",
			Fields:  verr.Fields,
		}})
		return
	}
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, "internal_error", "internal error")
}

// respondRejected writes a 4xx for an outcome that was not applied.
func respondRejected(c *gin.Context, actor auth.Principal, out falerh.Outcome) {
	status := http.StatusBadRequest
	if out.Reason == falerh.ReasonForbidden {
		status = http.StatusForbidden
	}

	msg := out.Detail
	if out.Reason == falerh.ReasonNotFound && !actor.IsAdmin() {
		msg = notPossible
	}
	respondError(c, status, strings.ToLower(string(out.Reason)), msg)
}
