package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"julianmorley.ca/con-plar/petstore/pkg/adoption"
	"julianmorley.ca/con-plar/petstore/pkg/global"
	"julianmorley.ca/con-plar/petstore/pkg/models"
)

const (
	ctxListQuery   = "listQuery"
	ctxOrderNumber = "orderNumber"
)

// RequestLogger logs one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}

// ApplicationListMiddleware checks the search, status and sort query
// parameters of the adoption listing and stores the parsed adoption.Query.
func ApplicationListMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q adoption.Query
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid query parameters", bindingErrors(err)))
			c.Abort()
			return
		}

		switch q.Status {
		case "", adoption.StatusAll:
		default:
			if !models.ApplicationStatus(q.Status).Valid() {
				c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid status filter", []global.ValidationError{
					{Field: "status", Message: "status must be all, pending, approved or rejected", Code: "oneof"},
				}))
				c.Abort()
				return
			}
		}

		switch q.SortBy {
		case "", adoption.SortByDate, adoption.SortByName, adoption.SortByStatus:
		default:
			c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid sort key", []global.ValidationError{
				{Field: "sort", Message: "sort must be date, name or status", Code: "oneof"},
			}))
			c.Abort()
			return
		}

		c.Set(ctxListQuery, q)
		c.Next()
	}
}

// OrderNumberMiddleware parses the :orderNumber path parameter.
func OrderNumberMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := strconv.Atoi(c.Param("orderNumber"))
		if err != nil || !models.ValidOrderNumber(n) {
			c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid order number", []global.ValidationError{
				{Field: "orderNumber", Message: "Order number must be a 6-digit number", Code: "invalid_format"},
			}))
			c.Abort()
			return
		}

		c.Set(ctxOrderNumber, n)
		c.Next()
	}
}
