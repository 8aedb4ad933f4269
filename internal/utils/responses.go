package utils

import "github.com/gin-gonic/gin"

// SuccessResponse wraps a successful payload in the standard envelope.
func SuccessResponse(message string, data interface{}) gin.H {
	return gin.H{
		"success": true,
		"message": message,
		"data":    data,
	}
}

// ErrorResponse builds the standard failure envelope. Detail is optional and
// should never carry internal state for security failures.
func ErrorResponse(message, detail string) gin.H {
	resp := gin.H{
		"success": false,
		"error":   message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	return resp
}
