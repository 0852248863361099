// Package crud builds the standard gin handlers for any stored resource.
//
// Every handler forwards failures with c.Error and writes nothing itself; the
// error middleware renders them. Missing documents become a uniform
// "no <name> for this id <id>" not-found error.
package crud

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/catalog/internal/domain"
	"github.com/simp-lee/catalog/internal/pkg"
	"github.com/simp-lee/catalog/internal/query"
)

// ParamID is the path parameter carrying a document id.
const ParamID = "id"

const baseFilterKey = "crud.baseFilter"

// Resource describes one servable resource.
type Resource[T any] struct {
	// Name is the singular resource name used in error messages.
	Name   string
	Repo   domain.Repository[T]
	Schema query.Schema
}

// Creator is a bound request body that produces a new document.
type Creator[T any] interface {
	Document() *T
}

// Updater is a bound request body that produces field changes keyed by JSON
// field name.
type Updater interface {
	Changes() map[string]any
}

// Populator decorates a fetched document, e.g. with a referenced parent.
type Populator[T any] func(ctx context.Context, doc *T) error

// CreateOne binds and validates In, stores the document it produces and
// responds 201 with it.
func CreateOne[T any, In Creator[T]](res Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if err := pkg.BindAndValidate(c, &in); err != nil {
			_ = c.Error(err)
			return
		}

		doc := in.Document()
		if err := res.Repo.Create(c.Request.Context(), doc); err != nil {
			_ = c.Error(err)
			return
		}
		pkg.Data(c, http.StatusCreated, doc)
	}
}

// GetOne responds with the document named by the id path parameter after
// running populate on it.
func GetOne[T any](res Resource[T], populate ...Populator[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, res.Name)
		if !ok {
			return
		}

		doc, err := res.Repo.FindByID(c.Request.Context(), id)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if doc == nil {
			_ = c.Error(domain.NotFound(res.Name, id))
			return
		}
		for _, p := range populate {
			if err := p(c.Request.Context(), doc); err != nil {
				_ = c.Error(err)
				return
			}
		}
		pkg.Data(c, http.StatusOK, doc)
	}
}

// UpdateOne applies the changes of In to the document named by the id path
// parameter and responds with the updated version.
func UpdateOne[T any, In Updater](res Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, res.Name)
		if !ok {
			return
		}

		var in In
		if err := pkg.BindAndValidate(c, &in); err != nil {
			_ = c.Error(err)
			return
		}

		doc, err := res.Repo.UpdateByID(c.Request.Context(), id, in.Changes())
		if err != nil {
			_ = c.Error(err)
			return
		}
		if doc == nil {
			_ = c.Error(domain.NotFound(res.Name, id))
			return
		}
		pkg.Data(c, http.StatusOK, doc)
	}
}

// DeleteOne removes the document named by the id path parameter and responds
// 204 with no body.
func DeleteOne[T any](res Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, res.Name)
		if !ok {
			return
		}

		deleted, err := res.Repo.DeleteByID(c.Request.Context(), id)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if !deleted {
			_ = c.Error(domain.NotFound(res.Name, id))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GetAll lists documents through the query features of the request and any
// base filter set by earlier middleware. The count uses the built filter so
// page metadata always matches the returned data.
func GetAll[T any](res Resource[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		f := query.New(c.Request.URL.Query(), res.Schema).
			Where(BaseFilter(c)...).
			Filter().
			Search().
			LimitFields().
			Sort()

		total, err := res.Repo.Count(ctx, f.Spec().Filter)
		if err != nil {
			_ = c.Error(err)
			return
		}
		f = f.Paginate(total)
		spec := f.Spec()

		docs, err := res.Repo.Find(ctx, spec)
		if err != nil {
			_ = c.Error(err)
			return
		}

		var data any = docs
		if spec.Projection.Requested {
			shaped, err := shape(docs, spec.Projection)
			if err != nil {
				_ = c.Error(domain.Internal("shape results", err))
				return
			}
			data = shaped
		}
		pkg.List(c, len(docs), f.Pagination(), data)
	}
}

// SetBaseFilter scopes the next GetAll handler in the chain to conds.
func SetBaseFilter(c *gin.Context, conds ...query.Condition) {
	c.Set(baseFilterKey, append(BaseFilter(c), conds...))
}

// BaseFilter returns the conditions set by SetBaseFilter.
func BaseFilter(c *gin.Context) []query.Condition {
	v, ok := c.Get(baseFilterKey)
	if !ok {
		return nil
	}
	conds, _ := v.([]query.Condition)
	return conds
}

// pathID reads and checks the id path parameter and returns it in the
// canonical lowercase hex form. On failure it records a validation error and
// returns false.
func pathID(c *gin.Context, name string) (string, bool) {
	id := c.Param(ParamID)
	if !query.IsValidID(id) {
		_ = c.Error(domain.Validation("invalid "+name+" id format", map[string]string{ParamID: id}))
		return "", false
	}
	return strings.ToLower(id), true
}

// shape drops every JSON key the projection does not keep.
func shape[T any](docs []T, p query.Projection) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(docs))
	for i := range docs {
		raw, err := json.Marshal(&docs[i])
		if err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		for k := range m {
			if !p.Keeps(k) {
				delete(m, k)
			}
		}
		out = append(out, m)
	}
	return out, nil
}
