// Package query compiles validated request models into Elasticsearch
// query documents. Compilation is pure and cannot fail on user input: a
// field the registry cannot resolve here means validation let something
// through, which is a logic error and panics.
package query

import (
	"fmt"
	"strings"

	"heritage-api/internal/search/fields"
	"heritage-api/internal/search/params"
)

// keywordQueryFields is the fixed, weighted field set behind the "q"
// parameter. Weights are static configuration.
var keywordQueryFields = []string{
	"dataProvider.name^1",
	"intermediateProvider^1",
	"provider.name^1",
	"sourceResource.collection.description^1",
	"sourceResource.collection.title^1",
	"sourceResource.contributor^1",
	"sourceResource.creator^1",
	"sourceResource.description^0.75",
	"sourceResource.extent^1",
	"sourceResource.format^1",
	"sourceResource.language.name^1",
	"sourceResource.publisher^1",
	"sourceResource.relation^1",
	"sourceResource.rights^1",
	"sourceResource.spatial.country^0.75",
	"sourceResource.spatial.county^1",
	"sourceResource.spatial.name^1",
	"sourceResource.spatial.region^1",
	"sourceResource.spatial.state^0.75",
	"sourceResource.specType^1",
	"sourceResource.subject.name^1",
	"sourceResource.subtitle^2",
	"sourceResource.title^2",
	"sourceResource.type^1",
}

// Builder compiles typed requests against a field registry.
type Builder struct {
	registry *fields.Registry
}

func NewBuilder(registry *fields.Registry) *Builder {
	return &Builder{registry: registry}
}

// Search compiles a SearchParams into a full search body.
func (b *Builder) Search(p *params.SearchParams) map[string]interface{} {
	return map[string]interface{}{
		"from":             from(p.Page, p.PageSize),
		"size":             p.PageSize,
		"query":            b.query(p),
		"aggs":             b.aggs(p.Facets, p.FacetSize),
		"sort":             b.sort(p),
		"_source":          b.fieldRetrieval(p.Fields),
		"track_total_hits": true,
	}
}

// MultiFetch compiles an id-list fetch: deterministic id order,
// independent of storage order.
func (b *Builder) MultiFetch(ids []string) map[string]interface{} {
	return map[string]interface{}{
		"from": 0,
		"size": len(ids),
		"query": map[string]interface{}{
			"terms": map[string]interface{}{
				"id": ids,
			},
		},
		"sort": map[string]interface{}{
			"id": map[string]interface{}{
				"order": "asc",
			},
		},
	}
}

// Random compiles a single-document random pick. boost_mode "sum" keeps
// the random score additive so a filtered query does not return the same
// document every time.
func (b *Builder) Random(p *params.RandomParams) map[string]interface{} {
	functionScore := map[string]interface{}{
		"random_score": map[string]interface{}{},
		"boost_mode":   "sum",
	}
	if len(p.Filters) > 0 {
		functionScore["query"] = map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": b.filterQuery(p.Filters),
			},
		}
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"function_score": functionScore,
		},
		"size": 1,
	}
}

func from(page, pageSize int) int {
	return (page - 1) * pageSize
}

// query assembles the boolean query: global keyword clause, per-field
// clauses combined by op, and the non-scoring filter group which is
// always AND-combined regardless of op.
func (b *Builder) query(p *params.SearchParams) map[string]interface{} {
	var queryTerms []interface{}
	if p.Q != "" {
		queryTerms = append(queryTerms, keywordQuery(p.Q, keywordQueryFields))
	}
	for _, fq := range p.FieldQueries {
		queryTerms = append(queryTerms, b.singleFieldQuery(fq, p.ExactFieldMatch)...)
	}

	var filterClause map[string]interface{}
	if len(p.Filters) > 0 {
		filterClause = b.filterQuery(p.Filters)
	}

	if len(queryTerms) == 0 && filterClause == nil {
		return map[string]interface{}{
			"match_all": map[string]interface{}{},
		}
	}

	boolTerm := "must"
	if p.Op == "OR" {
		boolTerm = "should"
	}

	boolBase := map[string]interface{}{}
	if len(queryTerms) > 0 {
		boolBase[boolTerm] = queryTerms
	}
	if filterClause != nil {
		boolBase["filter"] = filterClause
	}
	return map[string]interface{}{
		"bool": boolBase,
	}
}

// keywordQuery is a case-insensitive, wildcard-aware keyword search over
// the given fields, lenient on malformed syntax, conjunctive across terms.
func keywordQuery(q string, queryFields []string) map[string]interface{} {
	return map[string]interface{}{
		"query_string": map[string]interface{}{
			"fields":           queryFields,
			"query":            q,
			"analyze_wildcard": true,
			"default_operator": "AND",
			"lenient":          true,
		},
	}
}

// filterQuery is a non-scoring constraint: matching documents keep their
// relevance score untouched.
func (b *Builder) filterQuery(filters []params.Filter) map[string]interface{} {
	mustClauses := make([]interface{}, 0, len(filters))
	for _, f := range filters {
		path := b.mustBackendPath(f.FieldName)
		mustClauses = append(mustClauses, map[string]interface{}{
			"term": map[string]interface{}{
				path: f.Value,
			},
		})
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"must": mustClauses,
		},
	}
}

// singleFieldQuery dispatches on field-name suffix and match mode:
// ".before"/".after" become range clauses, exact-match mode becomes term
// clauses, everything else a keyword clause on the field's path.
func (b *Builder) singleFieldQuery(fq params.FieldQuery, exactFieldMatch bool) []interface{} {
	switch {
	case strings.HasSuffix(fq.FieldName, ".before"):
		return b.rangeQuery(fq, true)
	case strings.HasSuffix(fq.FieldName, ".after"):
		return b.rangeQuery(fq, false)
	case exactFieldMatch:
		return b.exactMatchQuery(fq)
	default:
		return b.basicFieldQuery(fq)
	}
}

// rangeQuery bounds the backend path inclusively: "before" caps with lte,
// "after" floors with gte.
func (b *Builder) rangeQuery(fq params.FieldQuery, isBefore bool) []interface{} {
	path := b.mustBackendPath(fq.FieldName)
	bound := "gte"
	if isBefore {
		bound = "lte"
	}
	return []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				path: map[string]interface{}{
					bound: fq.Value,
				},
			},
		},
	}
}

// exactMatchQuery splits the value on AND then OR and emits one term
// clause per token against the field's exact-match path. term queries are
// case-sensitive and unanalyzed.
func (b *Builder) exactMatchQuery(fq params.FieldQuery) []interface{} {
	path, ok := b.registry.ExactMatchPath(fq.FieldName)
	if !ok {
		panic(fmt.Sprintf("query: unresolvable exact-match field %q", fq.FieldName))
	}

	var clauses []interface{}
	for _, andToken := range strings.Split(stripPairedQuotes(fq.Value), "AND") {
		for _, token := range strings.Split(andToken, "OR") {
			value := stripPairedQuotes(strings.TrimSpace(token))
			clauses = append(clauses, map[string]interface{}{
				"term": map[string]interface{}{
					path: value,
				},
			})
		}
	}
	return clauses
}

func (b *Builder) basicFieldQuery(fq params.FieldQuery) []interface{} {
	path := b.mustBackendPath(fq.FieldName)
	return []interface{}{keywordQuery(fq.Value, []string{path})}
}

// stripPairedQuotes removes one leading and trailing quotation mark pair,
// but only when the string contains no internal quotation marks.
func stripPairedQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) &&
		!strings.Contains(s[1:len(s)-1], `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// aggs builds one aggregation per requested facet, keyed by the facet's
// own name so multiple facets coexist independently.
func (b *Builder) aggs(facets []string, facetSize int) map[string]interface{} {
	out := map[string]interface{}{}
	for _, facet := range facets {
		switch {
		case strings.SplitN(facet, ":", 2)[0] == b.registry.CoordinatesField():
			name, agg := b.spatialAgg(facet)
			out[name] = agg
		case b.registry.IsDateField(facet):
			out[facet] = b.dateAgg(facet)
		default:
			out[facet] = b.termsAgg(facet, facetSize)
		}
	}
	return out
}

// spatialAgg buckets documents by distance in miles from the origin given
// in the facet name: fixed 100-mile buckets from 0 to 2000 plus one
// open-ended bucket at 2100. The facet arrives colon-separated
// ("<name>:<lat>:<lon>"); the origin tail is rejoined with commas for the
// geo_distance form.
func (b *Builder) spatialAgg(facet string) (string, map[string]interface{}) {
	parts := strings.Split(facet, ":")
	name := parts[0]
	origin := strings.Join(parts[1:], ",")

	var ranges []interface{}
	for i := 0; i < 2000; i += 100 {
		ranges = append(ranges, map[string]interface{}{"from": i, "to": i + 99})
	}
	ranges = append(ranges, map[string]interface{}{"from": 2100})

	return name, map[string]interface{}{
		"geo_distance": map[string]interface{}{
			"field":  b.mustBackendPath(name),
			"origin": origin,
			"unit":   "mi",
			"ranges": ranges,
		},
	}
}

// dateAgg buckets a date field by month or year depending on the facet's
// granularity suffix, over a bounded historical window up to now, newest
// bucket first, empty buckets suppressed.
func (b *Builder) dateAgg(facet string) map[string]interface{} {
	path := b.mustBackendPath(facet)

	interval, format, gte := "year", "yyyy", "now-2000y"
	segments := strings.Split(facet, ".")
	if segments[len(segments)-1] == "month" {
		interval, format, gte = "month", "yyyy-MM", "now-416y"
	}

	return map[string]interface{}{
		"filter": map[string]interface{}{
			"range": map[string]interface{}{
				path: map[string]interface{}{
					"gte": gte,
					"lte": "now",
				},
			},
		},
		"aggs": map[string]interface{}{
			facet: map[string]interface{}{
				"date_histogram": map[string]interface{}{
					"field":         path,
					"interval":      interval,
					"format":        format,
					"min_doc_count": 1,
					"order": map[string]interface{}{
						"_key": "desc",
					},
				},
			},
		},
	}
}

func (b *Builder) termsAgg(facet string, facetSize int) map[string]interface{} {
	path, ok := b.registry.ExactMatchPath(facet)
	if !ok {
		panic(fmt.Sprintf("query: unresolvable facet field %q", facet))
	}
	return map[string]interface{}{
		"terms": map[string]interface{}{
			"field": path,
			"size":  facetSize,
		},
	}
}

// sort picks one of four strategies: storage order for unconstrained
// queries, relevance otherwise, geo distance for coordinate sorts, and
// field order for sortable fields.
func (b *Builder) sort(p *params.SearchParams) []interface{} {
	defaultSort := func() []interface{} {
		if p.Q == "" && len(p.FieldQueries) == 0 {
			// Storage order: fastest, meaningless.
			return []interface{}{"_doc"}
		}
		return []interface{}{"_score", "_doc"}
	}

	if p.SortBy == "" {
		return defaultSort()
	}

	if p.SortBy == b.registry.CoordinatesField() {
		return []interface{}{
			map[string]interface{}{
				"_geo_distance": map[string]interface{}{
					b.mustBackendPath(p.SortBy): p.SortByPin,
					"order":                     "asc",
					"unit":                      "mi",
				},
			},
			"_score",
			"_doc",
		}
	}

	if path, ok := b.registry.NonAnalyzedPath(p.SortBy); ok {
		return []interface{}{
			map[string]interface{}{
				path: map[string]interface{}{
					"order": p.SortOrder,
				},
			},
			"_score",
			"_doc",
		}
	}

	return defaultSort()
}

// fieldRetrieval projects the source to the mapped backend paths of the
// requested fields, or the whole document when none were requested.
func (b *Builder) fieldRetrieval(requested []string) []string {
	if len(requested) == 0 {
		return []string{"*"}
	}
	out := make([]string, 0, len(requested))
	for _, name := range requested {
		out = append(out, b.mustBackendPath(name))
	}
	return out
}

func (b *Builder) mustBackendPath(name string) string {
	path, ok := b.registry.BackendPath(name)
	if !ok {
		panic(fmt.Sprintf("query: unresolvable field %q", name))
	}
	return path
}
