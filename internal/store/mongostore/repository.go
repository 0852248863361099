package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/simp-lee/catalog/internal/domain"
	"github.com/simp-lee/catalog/internal/query"
)

// codeDocumentValidation is returned when a write fails the collection's
// $jsonSchema validator.
const codeDocumentValidation = 121

// Repository stores documents of type T in one collection.
type Repository[T any] struct {
	adapter    *Adapter
	collection string
	now        func() time.Time
}

var _ domain.Repository[domain.Category] = (*Repository[domain.Category])(nil)

// NewRepository returns a repository over the named collection.
func NewRepository[T any](adapter *Adapter, collection string) *Repository[T] {
	return &Repository[T]{adapter: adapter, collection: collection, now: time.Now}
}

func (r *Repository[T]) coll() *mongo.Collection {
	return r.adapter.Collection(r.collection)
}

// Create inserts doc after assigning its id and timestamps.
func (r *Repository[T]) Create(ctx context.Context, doc *T) error {
	if err := domain.Stamp(doc, r.now()); err != nil {
		return domain.Internal("prepare document", err)
	}
	ctx, cancel := r.adapter.withOperationTimeout(ctx)
	defer cancel()

	if _, err := r.coll().InsertOne(ctx, doc); err != nil {
		return mapError("insert "+r.collection, err)
	}
	return nil
}

// FindByID returns nil when no document has the id.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	ctx, cancel := r.adapter.withOperationTimeout(ctx)
	defer cancel()

	var doc T
	err = r.coll().FindOne(ctx, bson.D{{Key: query.IDField, Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("find "+r.collection, err)
	}
	return &doc, nil
}

// Find executes spec in a single round trip.
func (r *Repository[T]) Find(ctx context.Context, spec query.Spec) ([]T, error) {
	out := []T{}
	if spec.Filter.None {
		return out, nil
	}
	filter, err := filterDoc(spec.Filter)
	if err != nil {
		return nil, domain.Internal("build filter", err)
	}

	opts := options.Find().SetSort(sortDoc(spec.Sort))
	if spec.Skip > 0 {
		opts.SetSkip(spec.Skip)
	}
	if spec.Limit > 0 {
		opts.SetLimit(spec.Limit)
	}
	if proj := projectionDoc(spec.Projection); proj != nil {
		opts.SetProjection(proj)
	}

	ctx, cancel := r.adapter.withOperationTimeout(ctx)
	defer cancel()

	cur, err := r.coll().Find(ctx, filter, opts)
	if err != nil {
		return nil, mapError("find "+r.collection, err)
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapError("decode "+r.collection, err)
	}
	return out, nil
}

// Count returns the number of documents matching filter.
func (r *Repository[T]) Count(ctx context.Context, f query.Filter) (int64, error) {
	if f.None {
		return 0, nil
	}
	filter, err := filterDoc(f)
	if err != nil {
		return 0, domain.Internal("build filter", err)
	}
	ctx, cancel := r.adapter.withOperationTimeout(ctx)
	defer cancel()

	n, err := r.coll().CountDocuments(ctx, filter)
	if err != nil {
		return 0, mapError("count "+r.collection, err)
	}
	return n, nil
}

// UpdateByID sets changes, bumps updatedAt and the version counter, and
// returns the updated document or nil when the id does not exist.
func (r *Repository[T]) UpdateByID(ctx context.Context, id string, changes map[string]any) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	set := bson.D{}
	for k, v := range changes {
		if k == query.IDField || k == query.VersionField || k == query.CreatedAtField {
			continue
		}
		set = append(set, bson.E{Key: k, Value: v})
	}
	set = append(set, bson.E{Key: query.UpdatedAtField, Value: r.now().UTC().Truncate(time.Millisecond)})
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$inc", Value: bson.D{{Key: query.VersionField, Value: 1}}},
	}

	ctx, cancel := r.adapter.withOperationTimeout(ctx)
	defer cancel()

	var doc T
	err = r.coll().FindOneAndUpdate(ctx, bson.D{{Key: query.IDField, Value: oid}}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("update "+r.collection, err)
	}
	return &doc, nil
}

// DeleteByID reports whether a document was removed.
func (r *Repository[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	ctx, cancel := r.adapter.withOperationTimeout(ctx)
	defer cancel()

	res, err := r.coll().DeleteOne(ctx, bson.D{{Key: query.IDField, Value: oid}})
	if err != nil {
		return false, mapError("delete "+r.collection, err)
	}
	return res.DeletedCount > 0, nil
}

// mapError converts driver errors into domain errors.
func mapError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return domain.NewAppError(domain.KindAlreadyExists, "duplicate value for a unique field", err)
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == codeDocumentValidation {
				return domain.NewAppError(domain.KindValidation, "document failed validation", err)
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == codeDocumentValidation {
		return domain.NewAppError(domain.KindValidation, "document failed validation", err)
	}
	return domain.Internal(op, err)
}
