// Package params validates the raw query parameters of the item API and
// produces the typed request models consumed by the query builder.
package params

// FieldQuery is one validated free-text or range condition on a
// searchable field.
type FieldQuery struct {
	FieldName string
	Value     string
}

// Filter is one validated exact-value constraint parsed from the
// combined "filter" parameter.
type Filter struct {
	FieldName string
	Value     string
}

// SearchParams is the validated model of a search request.
// SortBy and SortByPin are either both set to the coordinates pairing or
// constrained independently; the pairing invariant is enforced during
// validation, never defaulted.
type SearchParams struct {
	ExactFieldMatch bool
	Facets          []string
	FacetSize       int
	Fields          []string
	FieldQueries    []FieldQuery
	Filters         []Filter
	Op              string
	Page            int
	PageSize        int
	Q               string
	SortBy          string
	SortByPin       string
	SortOrder       string
}

// RandomParams is the validated model of a random-item request.
type RandomParams struct {
	Filters []Filter
}

// ControlParams are the fixed non-field parameter names accepted by a
// search request, alongside every searchable field name.
var ControlParams = []string{
	"exact_field_match",
	"facets",
	"facet_size",
	"fields",
	"filter",
	"op",
	"page",
	"page_size",
	"q",
	"sort_by",
	"sort_by_pin",
	"sort_order",
}

// IgnoredFields are accepted in "facets" and "fields" but contribute
// nothing. Checked before the accept lists, which may also contain them.
var IgnoredFields = []string{"sourceResource.subtitle"}
