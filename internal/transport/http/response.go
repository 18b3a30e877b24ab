package httptransport

import "github.com/gin-gonic/gin"

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RespondError writes an ErrorResponse and aborts the handler chain.
func RespondError(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, ErrorResponse{Success: false, Error: message})
}

// RespondJSON writes payload with the given status.
func RespondJSON(c *gin.Context, httpStatus int, payload interface{}) {
	c.JSON(httpStatus, payload)
}
