package common

import "github.com/gin-gonic/gin"

// Uniform response envelope: {"code": 0, "message": "ok", "data": ...}.
// Non-zero codes identify the failure class to API clients.

func OK(c *gin.Context, data any) {
	c.JSON(200, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}
