// Package sqlstore serves resources from a relational database through GORM.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simp-lee/catalog/internal/domain"
	"github.com/simp-lee/catalog/internal/query"
)

// Repository stores documents of type T in the table GORM derives for T.
type Repository[T any] struct {
	db      *gorm.DB
	schema  query.Schema
	columns []string
	now     func() time.Time
}

var _ domain.Repository[domain.Category] = (*Repository[domain.Category])(nil)

// NewRepository returns a repository for T. schema maps query fields to
// columns of T's table.
func NewRepository[T any](db *gorm.DB, schema query.Schema) (*Repository[T], error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, fmt.Errorf("parse model %T: %w", *new(T), err)
	}
	return &Repository[T]{
		db:      db,
		schema:  schema,
		columns: stmt.Schema.DBNames,
		now:     time.Now,
	}, nil
}

func (r *Repository[T]) idEq(id string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: r.schema.Column(query.IDField)}, Value: id}
}

// Create inserts doc after assigning its id and timestamps.
func (r *Repository[T]) Create(ctx context.Context, doc *T) error {
	if err := domain.Stamp(doc, r.now()); err != nil {
		return domain.Internal("prepare document", err)
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// FindByID returns nil when no row has the id.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var doc T
	err := r.db.WithContext(ctx).Where(r.idEq(id)).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &doc, nil
}

// Find executes spec in a single query.
func (r *Repository[T]) Find(ctx context.Context, spec query.Spec) ([]T, error) {
	out := []T{}
	if spec.Filter.None {
		return out, nil
	}
	err := r.db.WithContext(ctx).Model(new(T)).Scopes(
		filterScope(spec.Filter, r.schema),
		selectScope(spec.Projection, r.schema, r.columns),
		sortScope(spec.Sort, r.schema),
		paginateScope(spec.Skip, spec.Limit),
	).Find(&out).Error
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// Count returns the number of rows matching f.
func (r *Repository[T]) Count(ctx context.Context, f query.Filter) (int64, error) {
	if f.None {
		return 0, nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(new(T)).Scopes(filterScope(f, r.schema)).Count(&n).Error; err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// UpdateByID applies changes, bumps updated_at and the version counter, and
// returns the updated row or nil when the id does not exist.
func (r *Repository[T]) UpdateByID(ctx context.Context, id string, changes map[string]any) (*T, error) {
	updates := map[string]any{}
	for field, v := range changes {
		if field == query.IDField || field == query.VersionField || field == query.CreatedAtField {
			continue
		}
		if _, ok := r.schema.Lookup(field); !ok {
			continue
		}
		updates[r.schema.Column(field)] = v
	}
	updates[r.schema.Column(query.UpdatedAtField)] = r.now().UTC().Truncate(time.Millisecond)
	versionCol := r.schema.Column(query.VersionField)
	updates[versionCol] = gorm.Expr("? + 1", clause.Column{Name: versionCol})

	var doc *T
	err := withTx(ctx, r.db, func(tx *gorm.DB) error {
		res := tx.Model(new(T)).Where(r.idEq(id)).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		var updated T
		if err := tx.Where(r.idEq(id)).Take(&updated).Error; err != nil {
			return err
		}
		doc = &updated
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return doc, nil
}

// DeleteByID reports whether a row was removed.
func (r *Repository[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where(r.idEq(id)).Delete(new(T))
	if res.Error != nil {
		return false, mapError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.KindAlreadyExists, "duplicate value for a unique field", err)
	}
	return domain.Internal("database error", err)
}

// isDuplicateKeyError detects unique constraint violations by examining the
// error message. Not all GORM dialectors translate driver-level errors to
// gorm.ErrDuplicatedKey (e.g. the pure-Go SQLite driver).
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
