package crud

import (
	"github.com/gin-gonic/gin"

	"github.com/simp-lee/catalog/internal/query"
)

// Options are the settings shared by every resource module.
type Options struct {
	// Guard runs before each write route. Empty leaves writes open.
	Guard []gin.HandlerFunc
	// DefaultLimit and MaxLimit override the page size bounds of the schema
	// when positive.
	DefaultLimit int
	MaxLimit     int
}

// Private prefixes h with the guard chain.
func (o Options) Private(h ...gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(o.Guard)+len(h))
	chain = append(chain, o.Guard...)
	return append(chain, h...)
}

// Apply returns s with the configured page size bounds.
func (o Options) Apply(s query.Schema) query.Schema {
	if o.DefaultLimit > 0 {
		s.DefaultLimit = o.DefaultLimit
	}
	if o.MaxLimit > 0 {
		s.MaxLimit = o.MaxLimit
	}
	return s
}
