package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage = 1
	defaultSize = 20
	maxSize     = 100
)

// Query holds normalized pagination parameters.
type Query struct {
	Page int
	Size int
}

// FromContext extracts page/size query params with sane bounds.
func FromContext(c *gin.Context) Query {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultSize)))
	if page < 1 {
		page = defaultPage
	}
	if size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return Query{Page: page, Size: size}
}

// Offset returns the SQL offset for the query.
func (q Query) Offset() int { return (q.Page - 1) * q.Size }
