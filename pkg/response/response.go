package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

// Envelope wraps single-resource responses.
type Envelope struct {
	Message string                 `json:"message,omitempty"`
	Data    interface{}            `json:"data"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// ListEnvelope is the paginated list contract.
type ListEnvelope struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
	Skip  int         `json:"skip"`
	Take  int         `json:"take"`
}

// ErrorBody is the structured failure contract.
type ErrorBody struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Error      string   `json:"error"`
	Code       string   `json:"code"`
	Details    []string `json:"details,omitempty"`
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// JSON sends a success response with optional metadata.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Message sends data alongside a human readable message.
func Message(c *gin.Context, status int, message string, data interface{}) {
	noStore(c)
	c.JSON(status, Envelope{Message: message, Data: data})
}

// List sends a paginated list response.
func List(c *gin.Context, data interface{}, total, skip, take int) {
	noStore(c)
	c.JSON(http.StatusOK, ListEnvelope{Data: data, Total: total, Skip: skip, Take: take})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError && appErr.Err != nil {
		_ = c.Error(appErr.Err)
	}
	noStore(c)
	c.JSON(appErr.Status, ErrorBody{
		StatusCode: appErr.Status,
		Message:    appErr.Message,
		Error:      http.StatusText(appErr.Status),
		Code:       appErr.Code,
		Details:    appErr.Details,
	})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
