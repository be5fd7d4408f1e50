package search

import (
	"context"

	"github.com/koustreak/scout/internal/database"
	"github.com/koustreak/scout/internal/schema"
)

const (
	maxFacets       = 5
	maxFacetBuckets = 10
)

// FacetBucket is one value of a facet with its row count.
type FacetBucket struct {
	Value any   `json:"value"`
	Count int64 `json:"count"`
}

// Facets computes value/count breakdowns for the first five filterable
// candidates, ten values each. A facet applies every declared filter
// except its own, so drilling into one field still shows the
// alternatives on that field.
func Facets(ctx context.Context, conn database.Conn, t *schema.Table, candidates []string, filters Filters) (map[string][]FacetBucket, error) {
	facets := make(map[string][]FacetBucket)

	for _, c := range candidates {
		if len(facets) == maxFacets {
			break
		}
		field, ok := t.Filterable(c)
		if !ok {
			continue
		}
		if _, dup := facets[field]; dup {
			continue
		}

		counts, err := groupCounts(ctx, conn, t, field, filters, field, maxFacetBuckets)
		if err != nil {
			return nil, err
		}

		buckets := make([]FacetBucket, 0, len(counts))
		for _, gc := range counts {
			buckets = append(buckets, FacetBucket{Value: gc.value, Count: gc.count})
		}
		facets[field] = buckets
	}
	return facets, nil
}
