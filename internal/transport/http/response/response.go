package response

import "github.com/gin-gonic/gin"

// Error writes a short error description. Domain failures carry precise 4xx
// codes; anything unexpected surfaces as 500. No stack traces on the wire.
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message})
}
