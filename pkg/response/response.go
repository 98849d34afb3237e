package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Datetime string      `json:"datetime"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data,omitempty"`
}

func write(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Body{
		Datetime: time.Now().Format(time.RFC3339),
		Message:  message,
		Data:     data,
	})
}

// OK sends a 200 JSON response with a message and optional data.
func OK(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusOK, message, data)
}

// Created sends a 201 JSON response.
func Created(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusCreated, message, data)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	write(c, http.StatusBadRequest, err, nil)
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	write(c, http.StatusUnauthorized, err, nil)
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	write(c, http.StatusForbidden, err, nil)
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	write(c, http.StatusNotFound, err, nil)
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	write(c, http.StatusConflict, err, nil)
}

// TooManyRequests sends 429.
func TooManyRequests(c *gin.Context, err string) {
	write(c, http.StatusTooManyRequests, err, nil)
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	write(c, http.StatusInternalServerError, err, nil)
}

// Unavailable sends 503.
func Unavailable(c *gin.Context, err string) {
	write(c, http.StatusServiceUnavailable, err, nil)
}
