// Package subcategory serves the /subcategories resource and its nested
// /categories/:id/subcategories routes.
package subcategory

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/catalog/internal/crud"
	"github.com/simp-lee/catalog/internal/domain"
	"github.com/simp-lee/catalog/internal/query"
)

const maxBodyBytes = 1 << 20

// Module implements app.Module for subcategories.
type Module struct {
	res        crud.Resource[domain.SubCategory]
	categories domain.Repository[domain.Category]
	opts       crud.Options
}

// NewModule creates the subcategory module. categories is used to populate
// the parent of a fetched subcategory.
// Panics if either repository is nil.
func NewModule(repo domain.Repository[domain.SubCategory], categories domain.Repository[domain.Category], opts crud.Options) *Module {
	if repo == nil || categories == nil {
		panic("subcategory.NewModule: repositories must not be nil")
	}
	return &Module{
		res: crud.Resource[domain.SubCategory]{
			Name:   "subcategory",
			Repo:   repo,
			Schema: opts.Apply(domain.SubCategorySchema()),
		},
		categories: categories,
		opts:       opts,
	}
}

// RegisterRoutes registers the flat and nested subcategory routes.
func (m *Module) RegisterRoutes(api *gin.RouterGroup) {
	create := crud.CreateOne[domain.SubCategory, CreateSubCategoryRequest](m.res)
	list := crud.GetAll(m.res)

	g := api.Group("/subcategories")
	g.GET("", list)
	g.POST("", m.opts.Private(create)...)
	g.GET("/:"+crud.ParamID, crud.GetOne(m.res, m.populateCategory))
	g.PUT("/:"+crud.ParamID, m.opts.Private(crud.UpdateOne[domain.SubCategory, UpdateSubCategoryRequest](m.res))...)
	g.DELETE("/:"+crud.ParamID, m.opts.Private(crud.DeleteOne(m.res))...)

	nested := api.Group("/categories/:" + crud.ParamID + "/subcategories")
	nested.GET("", scopeToCategory, list)
	nested.POST("", m.opts.Private(categoryFromPath, create)...)
}

// populateCategory fills CategoryDetails with the parent's id and name. A
// parent that no longer exists leaves the details empty.
func (m *Module) populateCategory(ctx context.Context, sub *domain.SubCategory) error {
	if !sub.Category.Valid() {
		return nil
	}
	parent, err := m.categories.FindByID(ctx, sub.Category.String())
	if err != nil {
		return err
	}
	if parent != nil {
		sub.CategoryDetails = &domain.CategoryRef{ID: parent.ID, Name: parent.Name}
	}
	return nil
}

// categoryID reads the parent id from the nested route path, lowercased to
// the canonical hex form.
func categoryID(c *gin.Context) (string, bool) {
	id := c.Param(crud.ParamID)
	if !query.IsValidID(id) {
		_ = c.Error(domain.Validation("invalid category id format", map[string]string{crud.ParamID: id}))
		c.Abort()
		return "", false
	}
	return strings.ToLower(id), true
}

// scopeToCategory restricts the list handler to the category in the path.
// The scope is ANDed with any client filter, so ?category=<other> can only
// narrow the result.
func scopeToCategory(c *gin.Context) {
	id, ok := categoryID(c)
	if !ok {
		return
	}
	crud.SetBaseFilter(c, query.Eq("category", query.KindID, id))
	c.Next()
}

// categoryFromPath sets the body's category to the path id when the client
// did not send one. Bodies that are not JSON objects pass through untouched
// and fail binding downstream.
func categoryFromPath(c *gin.Context) {
	id, ok := categoryID(c)
	if !ok {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		_ = c.Error(domain.Validation("invalid request body", nil))
		c.Abort()
		return
	}

	var body map[string]any
	if json.Unmarshal(raw, &body) == nil && body != nil {
		if v, ok := body["category"]; !ok || v == nil || v == "" {
			body["category"] = id
			if patched, err := json.Marshal(body); err == nil {
				raw = patched
			}
		}
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	c.Request.ContentLength = int64(len(raw))
	c.Next()
}
