package restful

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatusFunc maps a handler error to an HTTP status. Returning 0 defers to DefaultStatus.
type StatusFunc func(err error) int

// DefaultStatus classifies errors every handler can produce.
func DefaultStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads this
		return 499
	default:
		return http.StatusInternalServerError
	}
}

var errorPage = template.Must(template.New("error").Parse(
	`<!DOCTYPE html>
<html><head><title>{{.Status}} {{.Title}}</title></head>
<body><div class="error"><h1>{{.Title}}</h1><p>{{.Message}}</p></div></body></html>
`))

type errorView struct {
	Status  int    `json:"status"`
	Title   string `json:"error"`
	Message string `json:"message"`
}

// ErrorBoundary renders the last error a handler attached with c.Error when
// nothing has been written yet. HTML by default, JSON when the client asks.
func ErrorBoundary(classify StatusFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := 0
		if classify != nil {
			status = classify(err)
		}
		if status == 0 {
			status = DefaultStatus(err)
		}

		view := errorView{Status: status, Title: http.StatusText(status), Message: err.Error()}
		if view.Title == "" {
			view.Title = "Request aborted"
		}
		if status >= http.StatusInternalServerError {
			// backend details stay in the log
			view.Message = "The page could not be loaded. Please try again."
		}

		if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
			c.JSON(status, view)
			return
		}
		c.Status(status)
		c.Header("Content-Type", "text/html; charset=utf-8")
		_ = errorPage.Execute(c.Writer, view)
	}
}
