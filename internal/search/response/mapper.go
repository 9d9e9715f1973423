package response

import (
	"fmt"
	"sort"
	"strings"

	"heritage-api/internal/search/params"
)

// MapFetch maps a backend result without request context: count is the
// backend's reported total, docs come back in backend order.
func MapFetch(raw map[string]interface{}) (*DocList, error) {
	total, docs, err := extractHits(raw)
	if err != nil {
		return nil, err
	}
	return &DocList{Count: total, Docs: docs}, nil
}

// MapSearch maps a backend result for a search request: documents are
// optionally projected to the requested dotted paths, count mirrors the
// page-local document count, and pagination is echoed back.
func MapSearch(raw map[string]interface{}, p *params.SearchParams) (*DocList, error) {
	_, docs, err := extractHits(raw)
	if err != nil {
		return nil, err
	}

	if len(p.Fields) > 0 {
		docs = unNestFields(docs, p.Fields)
	}

	out := &DocList{
		Count: int64(len(docs)),
		Docs:  docs,
	}
	if start := (p.Page-1)*p.PageSize + 1; start > 0 {
		out.Start = &start
	}
	if p.PageSize > 0 {
		limit := p.PageSize
		out.Limit = &limit
	}
	if facets := mapFacets(raw); facets != nil {
		out.Facets = facets
	}
	return out, nil
}

func extractHits(raw map[string]interface{}) (int64, []map[string]interface{}, error) {
	hits, ok := raw["hits"].(map[string]interface{})
	if !ok {
		return 0, nil, fmt.Errorf("response: missing hits")
	}

	var total int64
	if t, ok := hits["total"].(map[string]interface{}); ok {
		if v, ok := t["value"].(float64); ok {
			total = int64(v)
		}
	}

	hitList, ok := hits["hits"].([]interface{})
	if !ok {
		return 0, nil, fmt.Errorf("response: missing hit list")
	}

	docs := make([]map[string]interface{}, 0, len(hitList))
	for _, h := range hitList {
		hit, ok := h.(map[string]interface{})
		if !ok {
			return 0, nil, fmt.Errorf("response: malformed hit")
		}
		if source, ok := hit["_source"].(map[string]interface{}); ok {
			docs = append(docs, source)
		}
	}
	return total, docs, nil
}

// unNestFields re-shapes each document to only the requested dotted
// paths, keyed by the full path.
func unNestFields(docs []map[string]interface{}, fieldPaths []string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		projected := map[string]interface{}{}
		for _, path := range fieldPaths {
			if v, ok := readPath(doc, strings.Split(path, ".")); ok {
				projected[path] = v
			}
		}
		out = append(out, projected)
	}
	return out
}

// readPath descends the document by path segments. A single-element
// sequence is unwrapped before continuing; longer sequences are returned
// as-is without further descent. Scalars are only valid at the final
// segment; an object at the final segment is returned whole.
func readPath(parent map[string]interface{}, segments []string) (interface{}, bool) {
	if len(segments) == 0 {
		return nil, false
	}
	child, ok := parent[segments[0]]
	if !ok || child == nil {
		return nil, false
	}
	return descend(child, segments[1:])
}

func descend(value interface{}, rest []string) (interface{}, bool) {
	end := len(rest) == 0
	switch v := value.(type) {
	case []interface{}:
		if len(v) == 1 {
			return descend(v[0], rest)
		}
		return v, true
	case map[string]interface{}:
		if end {
			return v, true
		}
		return readPath(v, rest)
	case string, float64, bool, int, int64:
		if end {
			return v, true
		}
		return nil, false
	default:
		return nil, false
	}
}

// mapFacets converts the aggregation section into the public facet list.
// Aggregations are keyed by facet name; shape decides the facet type.
func mapFacets(raw map[string]interface{}) *FacetList {
	aggs, ok := raw["aggregations"].(map[string]interface{})
	if !ok || len(aggs) == 0 {
		return nil
	}

	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)

	var facets []Facet
	for _, name := range names {
		agg, ok := aggs[name].(map[string]interface{})
		if !ok {
			continue
		}
		if facet, ok := mapFacet(name, agg); ok {
			facets = append(facets, facet)
		}
	}
	if len(facets) == 0 {
		return nil
	}
	return &FacetList{Facets: facets}
}

func mapFacet(name string, agg map[string]interface{}) (Facet, bool) {
	if buckets, ok := agg["buckets"].([]interface{}); ok {
		return mapBucketed(name, buckets)
	}
	// A date facet is a filtered sub-aggregation keyed by the facet name.
	if inner, ok := agg[name].(map[string]interface{}); ok {
		if buckets, ok := inner["buckets"].([]interface{}); ok {
			facet, ok := mapBucketed(name, buckets)
			if ok {
				facet.Type = "date_histogram"
			}
			return facet, ok
		}
	}
	return Facet{}, false
}

func mapBucketed(name string, rawBuckets []interface{}) (Facet, bool) {
	facet := Facet{Field: name, Type: "terms", Buckets: []Bucket{}}
	for _, rb := range rawBuckets {
		b, ok := rb.(map[string]interface{})
		if !ok {
			continue
		}
		bucket := Bucket{}
		switch key := b["key"].(type) {
		case string:
			bucket.Key = key
		case float64:
			bucket.Key = fmt.Sprintf("%d", int64(key))
		}
		if s, ok := b["key_as_string"].(string); ok {
			bucket.KeyAsString = s
		}
		if c, ok := b["doc_count"].(float64); ok {
			bucket.DocCount = int64(c)
		}
		if f, ok := b["from"].(float64); ok {
			bucket.From = &f
			facet.Type = "geo_distance"
		}
		if t, ok := b["to"].(float64); ok {
			bucket.To = &t
			facet.Type = "geo_distance"
		}
		facet.Buckets = append(facet.Buckets, bucket)
	}
	return facet, true
}
