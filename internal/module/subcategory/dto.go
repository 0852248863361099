package subcategory

import (
	"encoding/json"
	"strings"

	"github.com/simp-lee/catalog/internal/domain"
)

// CreateSubCategoryRequest is the body of POST /subcategories. On the nested
// route the category defaults to the one in the path.
type CreateSubCategoryRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=32"`
	Category string `json:"category" binding:"required,mongodb"`
}

// UnmarshalJSON trims the name and lowercases the category id before
// validation runs.
func (r *CreateSubCategoryRequest) UnmarshalJSON(b []byte) error {
	type plain CreateSubCategoryRequest
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Category = canonicalID(p.Category)
	*r = CreateSubCategoryRequest(p)
	return nil
}

func (r CreateSubCategoryRequest) Document() *domain.SubCategory {
	return &domain.SubCategory{
		Name:     r.Name,
		Slug:     domain.Slugify(r.Name),
		Category: domain.ID(r.Category),
	}
}

// UpdateSubCategoryRequest is the body of PUT /subcategories/:id.
type UpdateSubCategoryRequest struct {
	Name     *string `json:"name" binding:"omitnil,min=2,max=32"`
	Category *string `json:"category" binding:"omitnil,mongodb"`
}

func (r *UpdateSubCategoryRequest) UnmarshalJSON(b []byte) error {
	type plain UpdateSubCategoryRequest
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	if p.Category != nil {
		id := canonicalID(*p.Category)
		p.Category = &id
	}
	*r = UpdateSubCategoryRequest(p)
	return nil
}

func (r UpdateSubCategoryRequest) Changes() map[string]any {
	changes := map[string]any{}
	if r.Name != nil {
		changes["name"] = *r.Name
		changes["slug"] = domain.Slugify(*r.Name)
	}
	if r.Category != nil {
		changes["category"] = domain.ID(*r.Category)
	}
	return changes
}

func canonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
