// Package apifeatures turns untrusted list-endpoint query parameters into
// a bounded Mongo find request. It never touches the database; callers
// execute the result and may narrow it further before doing so.
package apifeatures

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	MaxLimit     = 100
)

var reserved = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var operators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
}

var (
	operatorKey = regexp.MustCompile(`^([^\[\]]+)\[([^\[\]]*)\]$`)
	fieldName   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
)

var (
	defaultSort       = bson.D{{Key: "createdAt", Value: -1}}
	defaultProjection = bson.D{{Key: "__v", Value: 0}}
)

type Query struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.D
	Page       int64
	Limit      int64
}

func (q *Query) Skip() int64 {
	return (q.Page - 1) * q.Limit
}

// IncludedFields lists the fields of an inclusion projection, or nil when
// the projection excludes fields instead.
func (q *Query) IncludedFields() []string {
	var out []string
	for _, e := range q.Projection {
		if v, ok := e.Value.(int); ok && v == 1 {
			out = append(out, e.Key)
		}
	}
	return out
}

func (q *Query) FindOptions() *options.FindOptionsBuilder {
	return options.Find().
		SetSort(q.Sort).
		SetProjection(q.Projection).
		SetSkip(q.Skip()).
		SetLimit(q.Limit)
}

// Build applies filter, sort, projection and pagination to params. Keys in
// base are fixed scope and cannot be overridden by params.
func Build(base bson.M, params url.Values) (*Query, error) {
	filter, err := buildFilter(params)
	if err != nil {
		return nil, err
	}
	for k, v := range base {
		filter[k] = v
	}

	sortDoc, err := buildSort(params.Get("sort"))
	if err != nil {
		return nil, err
	}

	projection, err := buildProjection(params.Get("fields"))
	if err != nil {
		return nil, err
	}

	limit := utils.ParseIntDefault(params.Get("limit"), DefaultLimit)
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	page := utils.ParseIntDefault(params.Get("page"), DefaultPage)
	// the offset (page-1)*limit must fit in an int64
	if page < 1 || int64(page-1) > math.MaxInt64/int64(limit) {
		page = DefaultPage
	}

	return &Query{
		Filter:     filter,
		Sort:       sortDoc,
		Projection: projection,
		Page:       int64(page),
		Limit:      int64(limit),
	}, nil
}

func buildFilter(params url.Values) (bson.M, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if !reserved[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	filter := bson.M{}
	for _, key := range keys {
		values := params[key]
		if len(values) == 0 {
			continue
		}
		value := coerce(values[len(values)-1])

		field, op := key, ""
		if strings.ContainsAny(key, "[]") {
			m := operatorKey.FindStringSubmatch(key)
			if m == nil {
				return nil, apperror.Validation(fmt.Sprintf("Invalid filter: %s", key))
			}
			mongoOp, ok := operators[m[2]]
			if !ok {
				return nil, apperror.Validation(fmt.Sprintf("Unsupported filter operator: %s", m[2]))
			}
			field, op = m[1], mongoOp
		}
		if !fieldName.MatchString(field) {
			return nil, apperror.Validation(fmt.Sprintf("Invalid filter field: %s", field))
		}

		existing, seen := filter[field]
		if op == "" {
			if seen {
				return nil, apperror.Validation(fmt.Sprintf("Conflicting filters on %s", field))
			}
			filter[field] = value
			continue
		}
		ops, isOps := existing.(bson.M)
		if seen && !isOps {
			return nil, apperror.Validation(fmt.Sprintf("Conflicting filters on %s", field))
		}
		if !seen {
			ops = bson.M{}
			filter[field] = ops
		}
		ops[op] = value
	}
	return filter, nil
}

// coerce maps a raw parameter to int64, float64 or bool when it parses as
// one, and leaves it a string otherwise.
func coerce(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && isDecimal(raw) {
		return f
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

func isDecimal(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' && r != 'e' && r != 'E' {
			return false
		}
	}
	return true
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func buildSort(raw string) (bson.D, error) {
	items := splitList(raw)
	if len(items) == 0 {
		return defaultSort, nil
	}
	seen := map[string]bool{}
	out := bson.D{}
	for _, item := range items {
		dir := 1
		name := item
		if strings.HasPrefix(item, "-") {
			dir = -1
			name = item[1:]
		}
		if !fieldName.MatchString(name) {
			return nil, apperror.Validation(fmt.Sprintf("Invalid sort field: %s", item))
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, bson.E{Key: name, Value: dir})
	}
	return out, nil
}

func buildProjection(raw string) (bson.D, error) {
	items := splitList(raw)
	if len(items) == 0 {
		return defaultProjection, nil
	}
	var include, exclude int
	seen := map[string]bool{}
	out := bson.D{}
	for _, item := range items {
		v := 1
		name := item
		if strings.HasPrefix(item, "-") {
			v = 0
			name = item[1:]
			exclude++
		} else {
			include++
		}
		if !fieldName.MatchString(name) {
			return nil, apperror.Validation(fmt.Sprintf("Invalid field: %s", item))
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, bson.E{Key: name, Value: v})
	}
	if include > 0 && exclude > 0 {
		return nil, apperror.Validation("Cannot mix included and excluded fields")
	}
	return out, nil
}
