package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/simp-lee/catalog/internal/query"
)

// ID is a document identifier: the hex form of a 12-byte ObjectID. It is
// stored as an ObjectID in MongoDB and as a fixed-size string elsewhere.
type ID string

// NewID returns a fresh identifier.
func NewID() ID {
	return ID(primitive.NewObjectID().Hex())
}

// Valid reports whether id is a well-formed identifier.
func (id ID) Valid() bool {
	return primitive.IsValidObjectID(string(id))
}

func (id ID) String() string { return string(id) }

// MarshalBSONValue encodes id as an ObjectID.
func (id ID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return 0, nil, fmt.Errorf("marshal id %q: %w", string(id), err)
	}
	return bson.MarshalValue(oid)
}

// UnmarshalBSONValue accepts an ObjectID or its hex string.
func (id *ID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.ObjectID:
		*id = ID(raw.ObjectID().Hex())
	case bsontype.String:
		*id = ID(raw.StringValue())
	case bsontype.Null, bsontype.Undefined:
		*id = ""
	default:
		return fmt.Errorf("unmarshal id: unsupported bson type %s", t)
	}
	return nil
}

// Document holds the fields every stored resource carries.
// It replaces gorm.Model to avoid the implicit soft delete behavior of DeletedAt.
type Document struct {
	ID        ID        `json:"_id" bson:"_id" gorm:"primaryKey;size:24"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
	Version   int       `json:"__v,omitempty" bson:"__v" gorm:"column:version;not null;default:0"`
}

// Base gives stores access to the embedded Document of any model.
func (d *Document) Base() *Document { return d }

// Model is implemented by pointers to every struct embedding Document.
type Model interface {
	Base() *Document
}

// ErrNotModel is returned when a value does not embed Document.
var ErrNotModel = errors.New("value does not embed domain.Document")

// Stamp prepares doc for insertion: it assigns an id when missing and sets
// both timestamps to now.
func Stamp(doc any, now time.Time) error {
	m, ok := doc.(Model)
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotModel, doc)
	}
	base := m.Base()
	if base.ID == "" {
		base.ID = NewID()
	}
	now = now.UTC().Truncate(time.Millisecond)
	base.CreatedAt = now
	base.UpdatedAt = now
	base.Version = 0
	return nil
}

// BaseFields returns the query schema fields shared by every document merged
// with extra.
func BaseFields(extra map[string]query.Field) map[string]query.Field {
	fields := map[string]query.Field{
		query.IDField:        {Kind: query.KindID, Column: "id"},
		query.VersionField:   {Kind: query.KindNumber, Column: "version"},
		query.CreatedAtField: {Kind: query.KindTime, Column: "created_at"},
		query.UpdatedAtField: {Kind: query.KindTime, Column: "updated_at"},
	}
	for name, f := range extra {
		fields[name] = f
	}
	return fields
}

// Repository is the storage capability every resource is served from.
// Absent documents are reported as a nil result or false, never as an error.
type Repository[T any] interface {
	Create(ctx context.Context, doc *T) error
	FindByID(ctx context.Context, id string) (*T, error)
	Find(ctx context.Context, spec query.Spec) ([]T, error)
	Count(ctx context.Context, filter query.Filter) (int64, error)
	// UpdateByID applies changes, keyed by JSON field name, and returns the
	// updated document.
	UpdateByID(ctx context.Context, id string, changes map[string]any) (*T, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
}
