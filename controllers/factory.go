package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/toursbackend/apifeatures"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Store is the collection access the generic handlers need. The
// database repositories satisfy it.
type Store[T any] interface {
	Find(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOptions]) ([]T, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*T, error)
	Create(ctx context.Context, doc *T) (bson.ObjectID, error)
	Replace(ctx context.Context, id bson.ObjectID, doc *T) error
	DeleteByID(ctx context.Context, id bson.ObjectID) error
}

// Resource builds the five CRUD handlers for one collection.
type Resource[T any] struct {
	Store Store[T]

	// Scope returns filter keys every list query is pinned to, such as the
	// parent tour of nested reviews. Clients cannot override them.
	Scope func(c *gin.Context) (bson.M, error)

	// Decode copies request input onto doc. The default decodes the JSON
	// body straight onto doc, so an update keeps every field the body omits.
	Decode func(c *gin.Context, doc *T, isNew bool) error

	// New seeds a document before Decode on create.
	New func(c *gin.Context) (*T, error)
}

func (r Resource[T]) decode(c *gin.Context, doc *T, isNew bool) error {
	if r.Decode != nil {
		return r.Decode(c, doc, isNew)
	}
	return c.ShouldBindJSON(doc)
}

// setID writes id back onto doc for responses.
func setID[T any](doc *T, id bson.ObjectID) {
	if d, ok := any(doc).(interface{ SetID(bson.ObjectID) }); ok {
		d.SetID(id)
	}
}

func (r Resource[T]) GetAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		var base bson.M
		if r.Scope != nil {
			scope, err := r.Scope(c)
			if err != nil {
				fail(c, err)
				return
			}
			base = scope
		}

		q, err := apifeatures.Build(base, c.Request.URL.Query())
		if err != nil {
			fail(c, err)
			return
		}
		docs, err := r.Store.Find(c.Request.Context(), q.Filter, q.FindOptions())
		if err != nil {
			fail(c, err)
			return
		}

		var data any = docs
		if fields := q.IncludedFields(); len(fields) > 0 {
			data, err = project(docs, fields)
			if err != nil {
				fail(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"results": len(docs),
			"data":    gin.H{"data": data},
		})
	}
}

// project trims the JSON form of docs down to fields plus id. The
// database projection already dropped the other values; this drops their
// zero-valued keys from the response too.
func project[T any](docs []T, fields []string) ([]map[string]any, error) {
	keep := map[string]bool{"id": true}
	for _, f := range fields {
		keep[f] = true
	}
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
			if !keep[k] {
				delete(m, k)
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (r Resource[T]) GetOne() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		doc, err := r.Store.FindByID(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		success(c, http.StatusOK, doc)
	}
}

func (r Resource[T]) CreateOne() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc := new(T)
		if r.New != nil {
			seeded, err := r.New(c)
			if err != nil {
				fail(c, err)
				return
			}
			doc = seeded
		}
		if err := r.decode(c, doc, true); err != nil {
			fail(c, err)
			return
		}
		id, err := r.Store.Create(c.Request.Context(), doc)
		if err != nil {
			fail(c, err)
			return
		}
		setID(doc, id)
		success(c, http.StatusCreated, doc)
	}
}

// UpdateOne loads the document, applies the request on top and replaces
// it, so the same validation runs as on create.
func (r Resource[T]) UpdateOne() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		doc, err := r.Store.FindByID(c.Request.Context(), id)
		if err != nil {
			fail(c, err)
			return
		}
		if err := r.decode(c, doc, false); err != nil {
			fail(c, err)
			return
		}
		setID(doc, id)
		if err := r.Store.Replace(c.Request.Context(), id, doc); err != nil {
			fail(c, err)
			return
		}
		success(c, http.StatusOK, doc)
	}
}

func (r Resource[T]) DeleteOne() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseID(c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if err := r.Store.DeleteByID(c.Request.Context(), id); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
