package mongo

import (
	"regexp"

	"github.com/UkralStul/blog-service/internal/query"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// fields maps listing field names to document paths.
var fields = map[string]string{
	"id":          "_id",
	"title":       "title",
	"description": "description",
	"imageUrl":    "imageUrl",
	"creatorId":   "creatorId",
	"createdAt":   "createdAt",
	"updatedAt":   "updatedAt",
}

// listFilter renders q as {$and: [{$or: [search...]}, {field: value}...]}.
func listFilter(q query.Query) bson.M {
	var and bson.A

	if q.SearchTerm != "" {
		pattern := bson.Regex{Pattern: regexp.QuoteMeta(q.SearchTerm), Options: "i"}
		var or bson.A
		for _, f := range q.SearchFields {
			if path, ok := fields[f]; ok {
				or = append(or, bson.M{path: pattern})
			}
		}
		if len(or) > 0 {
			and = append(and, bson.M{"$or": or})
		}
	}

	for _, f := range q.Filters {
		if path, ok := fields[f.Field]; ok {
			and = append(and, bson.M{path: f.Value})
		}
	}

	if len(and) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": and}
}

// listSort sorts by the requested field with _id as a tie-breaker so pages are stable.
func listSort(q query.Query) bson.D {
	path, ok := fields[q.Sort.Field]
	if !ok {
		path = "createdAt"
	}
	dir := -1
	if q.Sort.Order == query.Asc {
		dir = 1
	}
	sort := bson.D{{Key: path, Value: dir}}
	if path != "_id" {
		sort = append(sort, bson.E{Key: "_id", Value: dir})
	}
	return sort
}
