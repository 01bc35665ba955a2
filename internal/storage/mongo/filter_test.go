package mongo

import (
	"testing"

	"github.com/UkralStul/blog-service/internal/query"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestListFilter_Empty(t *testing.T) {
	assert.Equal(t, bson.M{}, listFilter(query.Query{}))
}

func TestListFilter_SearchAndFilters(t *testing.T) {
	q := query.Query{
		SearchTerm:   "a.b",
		SearchFields: []string{"title", "description"},
		Filters:      []query.Filter{{Field: "creatorId", Value: "acc-1"}},
	}

	pattern := bson.Regex{Pattern: `a\.b`, Options: "i"}
	expected := bson.M{"$and": bson.A{
		bson.M{"$or": bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}},
		bson.M{"creatorId": "acc-1"},
	}}
	assert.Equal(t, expected, listFilter(q))
}

func TestListFilter_UnknownFieldsIgnored(t *testing.T) {
	q := query.Query{
		SearchTerm:   "go",
		SearchFields: []string{"nope"},
		Filters:      []query.Filter{{Field: "password", Value: "x"}},
	}
	assert.Equal(t, bson.M{}, listFilter(q))
}

func TestListSort(t *testing.T) {
	got := listSort(query.Query{Sort: query.Sort{Field: "title", Order: query.Asc}})
	assert.Equal(t, bson.D{{Key: "title", Value: 1}, {Key: "_id", Value: 1}}, got)

	got = listSort(query.Query{Sort: query.Sort{Field: "unknown", Order: query.Desc}})
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}, got)
}
