// Package fields holds the static mapping between the public field names of
// the item API and their Elasticsearch paths. The registry is built once at
// startup and never mutated; validator and query builder receive it
// explicitly.
package fields

// FieldType classifies how a field's values are validated and queried.
type FieldType int

const (
	TextField FieldType = iota
	URLField
	DateField
	WildcardField
	CoordinatesType
)

// Field describes one public field of the item schema.
type Field struct {
	Name          string
	ES            string // analyzed path used for keyword queries
	ESExactMatch  string // non-analyzed path used for term queries
	ESNotAnalyzed string // non-analyzed path used for sorting and terms aggs
	Type          FieldType
	Searchable    bool
	Sortable      bool
	Facetable     bool
}

// Registry is an immutable lookup table over the field set.
type Registry struct {
	byName      map[string]Field
	ordered     []Field
	coordinates string
}

// CoordinatesFieldName is the one geo-point field of the schema.
const CoordinatesFieldName = "sourceResource.spatial.coordinates"

// text builds a Text field whose exact-match and sort paths are the
// ".not_analyzed" keyword variant of the analyzed path.
func text(name string, sortable, facetable bool) Field {
	return Field{
		Name:          name,
		ES:            name,
		ESExactMatch:  name + ".not_analyzed",
		ESNotAnalyzed: name + ".not_analyzed",
		Type:          TextField,
		Searchable:    true,
		Sortable:      sortable,
		Facetable:     facetable,
	}
}

func urlField(name string, sortable bool) Field {
	return Field{
		Name:          name,
		ES:            name,
		ESExactMatch:  name,
		ESNotAnalyzed: name,
		Type:          URLField,
		Searchable:    true,
		Sortable:      sortable,
	}
}

// date builds a Date field. path is the backing index path when it differs
// from the public name (the .before/.after search aliases).
func date(name, path string, searchable, sortable, facetable bool) Field {
	if path == "" {
		path = name
	}
	return Field{
		Name:          name,
		ES:            path,
		ESExactMatch:  path,
		ESNotAnalyzed: path,
		Type:          DateField,
		Searchable:    searchable,
		Sortable:      sortable,
		Facetable:     facetable,
	}
}

// DefaultRegistry returns the registry for the cultural heritage item schema.
func DefaultRegistry() *Registry {
	defs := []Field{
		{
			Name: "id", ES: "id", ESExactMatch: "id", ESNotAnalyzed: "id",
			Type: WildcardField, Searchable: true, Sortable: true,
		},
		urlField("@id", true),
		text("dataProvider.name", true, true),
		urlField("hasView.@id", false),
		text("hasView.format", false, true),
		text("intermediateProvider", true, true),
		urlField("isShownAt", true),
		urlField("object", true),
		urlField("provider.@id", true),
		text("provider.name", true, true),
		text("rights", false, true),
		text("sourceResource.collection.id", false, false),
		text("sourceResource.collection.title", true, true),
		text("sourceResource.collection.description", false, false),
		text("sourceResource.contributor", false, true),
		text("sourceResource.creator", false, false),

		date("sourceResource.date.begin", "", true, true, true),
		date("sourceResource.date.end", "", true, true, true),
		// Search aliases for open-ended date ranges. "before" constrains the
		// earliest date in a record, "after" the latest.
		date("sourceResource.date.before", "sourceResource.date.begin", true, false, false),
		date("sourceResource.date.after", "sourceResource.date.end", true, false, false),

		text("sourceResource.description", false, false),
		text("sourceResource.extent", false, false),
		text("sourceResource.format", false, true),
		{
			Name: "sourceResource.identifier", ES: "sourceResource.identifier",
			ESExactMatch:  "sourceResource.identifier.not_analyzed",
			ESNotAnalyzed: "sourceResource.identifier.not_analyzed",
			Type:          WildcardField, Searchable: true,
		},
		text("sourceResource.language.name", false, true),
		text("sourceResource.language.iso639_3", false, true),
		text("sourceResource.publisher", false, true),
		text("sourceResource.relation", false, false),
		text("sourceResource.rights", false, false),

		text("sourceResource.spatial.city", false, true),
		text("sourceResource.spatial.country", false, true),
		text("sourceResource.spatial.county", false, true),
		text("sourceResource.spatial.name", true, true),
		text("sourceResource.spatial.region", false, true),
		text("sourceResource.spatial.state", false, true),
		{
			// Not Facetable: a coordinates facet is only meaningful with an
			// origin, which the validator accepts in the colon form
			// "<name>:<lat>:<lon>". The bare name is rejected.
			Name:          CoordinatesFieldName,
			ES:            CoordinatesFieldName,
			ESExactMatch:  CoordinatesFieldName,
			ESNotAnalyzed: CoordinatesFieldName,
			Type:          CoordinatesType,
			Sortable:      true,
		},

		text("sourceResource.specType", false, true),
		urlField("sourceResource.subject.@id", false),
		text("sourceResource.subject.name", false, true),
		// subtitle stays in the schema but is suppressed from facet and
		// projection requests through the validator's ignore list.
		text("sourceResource.subtitle", true, true),

		date("sourceResource.temporal.begin", "", true, true, true),
		date("sourceResource.temporal.end", "", true, true, true),
		date("sourceResource.temporal.before", "sourceResource.temporal.begin", true, false, false),
		date("sourceResource.temporal.after", "sourceResource.temporal.end", true, false, false),

		text("sourceResource.title", true, true),
		text("sourceResource.type", false, true),
	}

	byName := make(map[string]Field, len(defs))
	for _, f := range defs {
		byName[f.Name] = f
	}

	return &Registry{
		byName:      byName,
		ordered:     defs,
		coordinates: CoordinatesFieldName,
	}
}

// TypeOf returns the field's type classification.
func (r *Registry) TypeOf(name string) (FieldType, bool) {
	f, ok := r.byName[name]
	return f.Type, ok
}

// BackendPath returns the analyzed Elasticsearch path for a field.
func (r *Registry) BackendPath(name string) (string, bool) {
	f, ok := r.byName[name]
	return f.ES, ok
}

// ExactMatchPath returns the non-analyzed path used for term queries.
func (r *Registry) ExactMatchPath(name string) (string, bool) {
	f, ok := r.byName[name]
	if !ok || f.ESExactMatch == "" {
		return "", false
	}
	return f.ESExactMatch, true
}

// NonAnalyzedPath returns the path used for sorting and terms aggregations.
func (r *Registry) NonAnalyzedPath(name string) (string, bool) {
	f, ok := r.byName[name]
	if !ok || f.ESNotAnalyzed == "" {
		return "", false
	}
	return f.ESNotAnalyzed, true
}

func (r *Registry) IsKnown(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *Registry) IsSearchable(name string) bool {
	f, ok := r.byName[name]
	return ok && f.Searchable
}

func (r *Registry) IsSortable(name string) bool {
	f, ok := r.byName[name]
	return ok && f.Sortable
}

func (r *Registry) IsFacetable(name string) bool {
	f, ok := r.byName[name]
	return ok && f.Facetable
}

// SearchableFields returns the searchable field names in schema order.
func (r *Registry) SearchableFields() []string {
	out := make([]string, 0, len(r.ordered))
	for _, f := range r.ordered {
		if f.Searchable {
			out = append(out, f.Name)
		}
	}
	return out
}

func (r *Registry) SortableFields() []string {
	out := make([]string, 0, len(r.ordered))
	for _, f := range r.ordered {
		if f.Sortable {
			out = append(out, f.Name)
		}
	}
	return out
}

func (r *Registry) FacetableFields() []string {
	out := make([]string, 0, len(r.ordered))
	for _, f := range r.ordered {
		if f.Facetable {
			out = append(out, f.Name)
		}
	}
	return out
}

// AllFields returns every public field name, the accept set for the
// "fields" projection parameter.
func (r *Registry) AllFields() []string {
	out := make([]string, 0, len(r.ordered))
	for _, f := range r.ordered {
		out = append(out, f.Name)
	}
	return out
}

// DateFields returns the date-typed field names.
func (r *Registry) DateFields() []string {
	out := make([]string, 0, 8)
	for _, f := range r.ordered {
		if f.Type == DateField {
			out = append(out, f.Name)
		}
	}
	return out
}

// CoordinatesField returns the name of the distinguished geo field.
func (r *Registry) CoordinatesField() string {
	return r.coordinates
}

// IsDateField reports whether name is one of the date-typed fields.
func (r *Registry) IsDateField(name string) bool {
	f, ok := r.byName[name]
	return ok && f.Type == DateField
}
