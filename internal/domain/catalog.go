package domain

import "github.com/simp-lee/catalog/internal/query"

// Category is a top-level grouping of the catalog.
type Category struct {
	Document `bson:",inline"`
	Name     string `json:"name" bson:"name" gorm:"size:32;uniqueIndex;not null"`
	Slug     string `json:"slug" bson:"slug" gorm:"size:64;index"`
}

// TableName doubles as the Mongo collection name.
func (Category) TableName() string { return "categories" }

// CategorySchema describes the queryable fields of Category.
func CategorySchema() query.Schema {
	return query.Schema{
		Fields: BaseFields(map[string]query.Field{
			"name": {Kind: query.KindString, Column: "name"},
			"slug": {Kind: query.KindString, Column: "slug"},
		}),
		Searchable: []string{"name"},
	}
}

// CategoryRef is the parent summary embedded in a populated SubCategory.
type CategoryRef struct {
	ID   ID     `json:"_id"`
	Name string `json:"name"`
}

// SubCategory belongs to exactly one Category.
type SubCategory struct {
	Document `bson:",inline"`
	Name     string `json:"name" bson:"name" gorm:"size:32;uniqueIndex;not null"`
	Slug     string `json:"slug" bson:"slug" gorm:"size:64;index"`
	Category ID     `json:"category" bson:"category" gorm:"column:category;size:24;index;not null"`

	CategoryDetails *CategoryRef `json:"categoryDetails,omitempty" bson:"-" gorm:"-"`
}

// TableName doubles as the Mongo collection name.
func (SubCategory) TableName() string { return "subcategories" }

// SubCategorySchema describes the queryable fields of SubCategory.
func SubCategorySchema() query.Schema {
	return query.Schema{
		Fields: BaseFields(map[string]query.Field{
			"name":     {Kind: query.KindString, Column: "name"},
			"slug":     {Kind: query.KindString, Column: "slug"},
			"category": {Kind: query.KindID, Column: "category"},
		}),
		Searchable: []string{"name"},
	}
}
