package handlers

import (
	"strconv"

	"dissent/internal/services"

	"github.com/gin-gonic/gin"
)

// Pagination carries the p/cpp query parameters and the derived offset.
type Pagination struct {
	P    int `json:"p"`
	Cpp  int `json:"cpp"`
	Skip int `json:"-"`
}

// GetPagination parses p/cpp from the query string; p below 1 is clamped.
func GetPagination(c *gin.Context, defaultCpp int) Pagination {
	p := 1
	if raw := c.Query("p"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			p = n
		}
	}
	if p < 1 {
		p = 1
	}
	cpp := defaultCpp
	if raw := c.Query("cpp"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cpp = n
		}
	}
	return Pagination{P: p, Cpp: cpp, Skip: (p - 1) * cpp}
}

// AbortError writes the standard failure body with the error's status code.
func AbortError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(services.ErrorStatus(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
