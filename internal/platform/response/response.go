package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haulwatch/service-tracking/internal/domain"
)

// errorBody is the error half of the response envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes a 200 response with the standard envelope.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created writes a 201 response with the standard envelope.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// Paginated writes a 200 response carrying one page of items.
func Paginated[T any](c *gin.Context, items []T, total int64, page, limit int) {
	result := domain.NewPaginatedResult(items, total, page, limit)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// BadRequest writes a 400 response with the given message.
func BadRequest(c *gin.Context, message string) {
	Fail(c, http.StatusBadRequest, message)
}

// Fail writes an error response with an explicit status code.
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   errorBody{Code: codeForStatus(status), Message: message},
	})
}

// Error maps a shared domain error onto the matching HTTP status. Errors
// that carry no kind fall back to a 500.
func Error(c *gin.Context, err error) {
	var appErr *domain.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case domain.KindValidation:
			Fail(c, http.StatusBadRequest, appErr.Message)
		case domain.KindNotFound:
			Fail(c, http.StatusNotFound, appErr.Message)
		case domain.KindConflict:
			Fail(c, http.StatusConflict, appErr.Message)
		case domain.KindForbidden:
			Fail(c, http.StatusForbidden, appErr.Message)
		default:
			Fail(c, http.StatusInternalServerError, appErr.Message)
		}
		return
	}

	Fail(c, http.StatusInternalServerError, err.Error())
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusUnprocessableEntity:
		return "UNPROCESSABLE"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
