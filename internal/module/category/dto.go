package category

import (
	"encoding/json"
	"strings"

	"github.com/simp-lee/catalog/internal/domain"
)

// CreateCategoryRequest is the body of POST /categories. The name is trimmed
// while decoding, so length rules apply to the stored value.
type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required,min=3,max=32"`
}

func (r *CreateCategoryRequest) UnmarshalJSON(b []byte) error {
	type plain CreateCategoryRequest
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	p.Name = strings.TrimSpace(p.Name)
	*r = CreateCategoryRequest(p)
	return nil
}

// Document builds the category to store; the slug follows the name.
func (r CreateCategoryRequest) Document() *domain.Category {
	return &domain.Category{Name: r.Name, Slug: domain.Slugify(r.Name)}
}

// UpdateCategoryRequest is the body of PUT /categories/:id. Absent fields
// are left unchanged.
type UpdateCategoryRequest struct {
	Name *string `json:"name" binding:"omitnil,min=3,max=32"`
}

func (r *UpdateCategoryRequest) UnmarshalJSON(b []byte) error {
	type plain UpdateCategoryRequest
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	*r = UpdateCategoryRequest(p)
	return nil
}

// Changes returns the fields to update keyed by JSON name.
func (r UpdateCategoryRequest) Changes() map[string]any {
	changes := map[string]any{}
	if r.Name != nil {
		changes["name"] = *r.Name
		changes["slug"] = domain.Slugify(*r.Name)
	}
	return changes
}
