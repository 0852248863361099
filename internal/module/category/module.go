// Package category serves the /categories resource.
package category

import (
	"github.com/gin-gonic/gin"

	"github.com/simp-lee/catalog/internal/crud"
	"github.com/simp-lee/catalog/internal/domain"
)

// Module implements app.Module for categories.
type Module struct {
	res  crud.Resource[domain.Category]
	opts crud.Options
}

// NewModule creates the category module over repo.
// Panics if repo is nil.
func NewModule(repo domain.Repository[domain.Category], opts crud.Options) *Module {
	if repo == nil {
		panic("category.NewModule: repository must not be nil")
	}
	return &Module{
		res: crud.Resource[domain.Category]{
			Name:   "category",
			Repo:   repo,
			Schema: opts.Apply(domain.CategorySchema()),
		},
		opts: opts,
	}
}

// RegisterRoutes registers the category API routes.
func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group("/categories")
	g.GET("", crud.GetAll(m.res))
	g.POST("", m.opts.Private(crud.CreateOne[domain.Category, CreateCategoryRequest](m.res))...)
	g.GET("/:"+crud.ParamID, crud.GetOne(m.res))
	g.PUT("/:"+crud.ParamID, m.opts.Private(crud.UpdateOne[domain.Category, UpdateCategoryRequest](m.res))...)
	g.DELETE("/:"+crud.ParamID, m.opts.Private(crud.DeleteOne(m.res))...)
}
