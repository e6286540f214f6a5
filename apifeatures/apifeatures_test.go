package apifeatures

import (
	"math"
	"net/url"
	"strconv"
	"testing"

	"github.com/princinho/toursbackend/apperror"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"pgregory.net/rapid"
)

func TestBuildFullExample(t *testing.T) {
	params := url.Values{
		"price[gte]": {"100"},
		"sort":       {"-price,name"},
		"fields":     {"name,price"},
		"page":       {"2"},
		"limit":      {"5"},
	}

	q, err := Build(bson.M{}, params)
	require.NoError(t, err)

	require.Equal(t, bson.M{"price": bson.M{"$gte": int64(100)}}, q.Filter)
	require.Equal(t, bson.D{{Key: "price", Value: -1}, {Key: "name", Value: 1}}, q.Sort)
	require.Equal(t, bson.D{{Key: "name", Value: 1}, {Key: "price", Value: 1}}, q.Projection)
	require.Equal(t, []string{"name", "price"}, q.IncludedFields())
	require.Equal(t, int64(5), q.Skip())
	require.Equal(t, int64(5), q.Limit)
	require.NotNil(t, q.FindOptions())
}

func TestBuildDefaults(t *testing.T) {
	q, err := Build(nil, url.Values{})
	require.NoError(t, err)

	require.Empty(t, q.Filter)
	require.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, q.Sort)
	require.Equal(t, bson.D{{Key: "__v", Value: 0}}, q.Projection)
	require.Nil(t, q.IncludedFields())
	require.Equal(t, int64(1), q.Page)
	require.Equal(t, int64(100), q.Limit)
	require.Equal(t, int64(0), q.Skip())
}

func TestBuildInvalidPaginationFallsBack(t *testing.T) {
	for _, raw := range [][2]string{
		{"abc", "xyz"},
		{"0", "0"},
		{"-3", "-10"},
		{"1.5", "2e3"},
		{"", ""},
		{"9223372036854775807", ""},
		{"99999999999999999999", "abc"},
	} {
		q, err := Build(bson.M{}, url.Values{"page": {raw[0]}, "limit": {raw[1]}})
		require.NoError(t, err, raw)
		require.Equal(t, int64(1), q.Page, raw)
		require.Equal(t, int64(100), q.Limit, raw)
	}
}

func TestBuildClampsLimit(t *testing.T) {
	q, err := Build(bson.M{}, url.Values{"limit": {"5000"}})
	require.NoError(t, err)
	require.Equal(t, int64(MaxLimit), q.Limit)
}

func TestBuildCoercesValues(t *testing.T) {
	q, err := Build(bson.M{}, url.Values{
		"duration":   {"5"},
		"price[lt]":  {"99.5"},
		"price[gt]":  {"10"},
		"secretTour": {"false"},
		"difficulty": {"easy"},
		"name":       {"1e3x"},
	})
	require.NoError(t, err)
	require.Equal(t, bson.M{
		"duration":   int64(5),
		"price":      bson.M{"$lt": 99.5, "$gt": int64(10)},
		"secretTour": false,
		"difficulty": "easy",
		"name":       "1e3x",
	}, q.Filter)
}

func TestBuildLastValueWins(t *testing.T) {
	q, err := Build(bson.M{}, url.Values{"difficulty": {"easy", "medium"}})
	require.NoError(t, err)
	require.Equal(t, "medium", q.Filter["difficulty"])
}

func TestBuildBaseScopeWins(t *testing.T) {
	tourID := bson.NewObjectID()
	q, err := Build(bson.M{"tour": tourID}, url.Values{"tour": {"something-else"}, "rating[gte]": {"4"}})
	require.NoError(t, err)
	require.Equal(t, tourID, q.Filter["tour"])
	require.Equal(t, bson.M{"$gte": int64(4)}, q.Filter["rating"])
}

func TestBuildRejectsUnsafeInput(t *testing.T) {
	cases := []url.Values{
		{"price[regex]": {"1"}},
		{"price[ne]": {"1"}},
		{"price[]": {"1"}},
		{"price[gte][x]": {"1"}},
		{"$where": {"1"}},
		{"price.$gt": {"1"}},
		{".price": {"1"}},
		{"sort": {"-$natural"}},
		{"fields": {"name,-price"}},
		{"fields": {"na$me"}},
		{"price": {"5"}, "price[gte]": {"1"}},
	}
	for _, params := range cases {
		_, err := Build(bson.M{}, params)
		require.Error(t, err, params)
		require.True(t, apperror.IsKind(err, apperror.ValidationFailed), params)
	}
}

func TestBuildExclusionProjection(t *testing.T) {
	q, err := Build(bson.M{}, url.Values{"fields": {"-summary,-description"}})
	require.NoError(t, err)
	require.Equal(t, bson.D{{Key: "summary", Value: 0}, {Key: "description", Value: 0}}, q.Projection)
	require.Nil(t, q.IncludedFields())
}

func TestBuildSortDeduplicates(t *testing.T) {
	q, err := Build(bson.M{}, url.Values{"sort": {"price,-price, ,name"}})
	require.NoError(t, err)
	require.Equal(t, bson.D{{Key: "price", Value: 1}, {Key: "name", Value: 1}}, q.Sort)
}

func TestBuildPaginationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		page := rapid.OneOf(
			rapid.IntRange(-5, 1000),
			rapid.IntRange(math.MaxInt64/MaxLimit-10, math.MaxInt64),
		).Draw(t, "page")
		limit := rapid.IntRange(-5, 1000).Draw(t, "limit")

		q, err := Build(bson.M{}, url.Values{
			"page":  {strconv.Itoa(page)},
			"limit": {strconv.Itoa(limit)},
		})
		require.NoError(t, err)

		require.GreaterOrEqual(t, q.Page, int64(1))
		require.GreaterOrEqual(t, q.Limit, int64(1))
		require.LessOrEqual(t, q.Limit, int64(MaxLimit))
		require.Equal(t, (q.Page-1)*q.Limit, q.Skip())
		require.GreaterOrEqual(t, q.Skip(), int64(0))
		if page >= 1 && page <= 1000 {
			require.Equal(t, int64(page), q.Page)
		}
	})
}

func TestBuildArbitraryParamsNeverPanic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		params := url.Values{}
		n := rapid.IntRange(0, 6).Draw(t, "n")
		for i := 0; i < n; i++ {
			k := rapid.String().Draw(t, "key")
			params.Add(k, rapid.String().Draw(t, "value"))
		}
		q, err := Build(bson.M{}, params)
		if err != nil {
			require.True(t, apperror.IsKind(err, apperror.ValidationFailed))
			return
		}
		for k := range q.Filter {
			require.NotContains(t, k, "$")
		}
	})
}
