package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var ErrNoDocument = apperror.Missing("No document found with that ID")

// Repository is the generic collection access every resource builds on.
// A non-empty scope is ANDed into every read, replace, delete and
// aggregation, which is how soft-deleted users and secret tours stay hidden.
type Repository[T any] struct {
	col        *mongo.Collection
	scope      bson.M
	beforeSave func(doc *T, isNew bool) error
}

type RepositoryOption[T any] func(*Repository[T])

func WithScope[T any](scope bson.M) RepositoryOption[T] {
	return func(r *Repository[T]) { r.scope = scope }
}

// WithBeforeSave runs fn on every Create and Replace before the write.
func WithBeforeSave[T any](fn func(doc *T, isNew bool) error) RepositoryOption[T] {
	return func(r *Repository[T]) { r.beforeSave = fn }
}

func NewRepository[T any](col *mongo.Collection, opts ...RepositoryOption[T]) *Repository[T] {
	r := &Repository[T]{col: col}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository[T]) Collection() *mongo.Collection { return r.col }

func (r *Repository[T]) scoped(filter bson.M) bson.M {
	if len(r.scope) == 0 {
		if filter == nil {
			return bson.M{}
		}
		return filter
	}
	if len(filter) == 0 {
		return r.scope
	}
	return bson.M{"$and": bson.A{r.scope, filter}}
}

func (r *Repository[T]) Find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cursor, err := r.col.Find(ctx, r.scoped(filter), opts...)
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	out := make([]T, 0)
	for cursor.Next(ctx) {
		var doc T
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.col.Name(), err)
		}
		out = append(out, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (r *Repository[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := r.col.CountDocuments(ctx, r.scoped(filter))
	return n, translate(err)
}

func (r *Repository[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	var doc T
	if err := r.col.FindOne(ctx, r.scoped(filter)).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

func (r *Repository[T]) FindByID(ctx context.Context, id bson.ObjectID) (*T, error) {
	return r.FindOne(ctx, bson.M{"_id": id})
}

// Create inserts doc and returns its new id.
func (r *Repository[T]) Create(ctx context.Context, doc *T) (bson.ObjectID, error) {
	if r.beforeSave != nil {
		if err := r.beforeSave(doc, true); err != nil {
			return bson.ObjectID{}, err
		}
	}
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return bson.ObjectID{}, translate(err)
	}
	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return bson.ObjectID{}, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return id, nil
}

// Replace overwrites the document with doc. Concurrent replaces of the
// same id are last-write-wins.
func (r *Repository[T]) Replace(ctx context.Context, id bson.ObjectID, doc *T) error {
	if r.beforeSave != nil {
		if err := r.beforeSave(doc, false); err != nil {
			return err
		}
	}
	res, err := r.col.ReplaceOne(ctx, r.scoped(bson.M{"_id": id}), doc)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNoDocument
	}
	return nil
}

func (r *Repository[T]) DeleteByID(ctx context.Context, id bson.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, r.scoped(bson.M{"_id": id}))
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return ErrNoDocument
	}
	return nil
}

// Aggregate runs pipeline behind the scope match and decodes into out,
// which must be a pointer to a slice.
func (r *Repository[T]) Aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	if len(r.scope) > 0 {
		pipeline = append(mongo.Pipeline{{{Key: "$match", Value: r.scope}}}, pipeline...)
	}
	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return translate(err)
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, out); err != nil {
		return translate(err)
	}
	return nil
}

// translate maps driver errors onto the API's error kinds.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNoDocument
	case utils.IsDuplicateKey(err):
		field := utils.DuplicateKeyField(err)
		if field == "" {
			field = "value"
		}
		return apperror.Wrap(apperror.Conflict,
			fmt.Sprintf("Duplicate field value: %s. Please use another value!", field), err)
	default:
		return err
	}
}
