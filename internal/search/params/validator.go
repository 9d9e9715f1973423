package params

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"heritage-api/internal/common/apierr"
	"heritage-api/internal/common/config"
	"heritage-api/internal/search/fields"
)

const (
	defaultExactFieldMatch = false
	minFacetSize           = 0
	defaultOp              = "AND"
	minPage                = 1
	defaultPage            = 1
	minPageSize            = 0
	defaultSortOrder       = "asc"
	minTextLength          = 2
	maxTextLength          = 200
)

var (
	idRegex     = regexp.MustCompile(`^[a-zA-Z0-9]{32}$`)
	apiKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9-]{32}$`)
	dateRegex   = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)
)

// ValidAPIKey reports whether key has the shared API-key shape: 32
// characters of letters, numbers and hyphens.
func ValidAPIKey(key string) bool {
	return apiKeyRegex.MatchString(key)
}

// Validator checks raw request parameters against the field registry and
// the configured bounds.
type Validator struct {
	registry *fields.Registry
	accepted map[string]bool
	ignored  map[string]bool

	maxIDs          int
	maxPage         int
	maxPageSize     int
	defaultPageSize int
	maxFacetSize    int
	defaultFacets   int
}

// NewValidator builds a validator over the given registry. Bounds come
// from configuration; the page-size and id-count caps are deployment
// knobs, not constants.
func NewValidator(registry *fields.Registry, cfg config.SearchConfig) *Validator {
	accepted := make(map[string]bool)
	for _, name := range registry.SearchableFields() {
		accepted[name] = true
	}
	for _, name := range ControlParams {
		accepted[name] = true
	}
	ignored := make(map[string]bool, len(IgnoredFields))
	for _, name := range IgnoredFields {
		ignored[name] = true
	}
	return &Validator{
		registry:        registry,
		accepted:        accepted,
		ignored:         ignored,
		maxIDs:          cfg.MaxIDs,
		maxPage:         cfg.MaxPage,
		maxPageSize:     cfg.MaxPageSize,
		defaultPageSize: cfg.DefaultPageSize,
		maxFacetSize:    cfg.MaxFacetSize,
		defaultFacets:   cfg.DefaultFacets,
	}
}

// Search validates a raw parameter map into SearchParams. Defaults are
// applied only for absent parameters; a present-but-invalid value is an
// error. The first rule violation aborts the request.
func (v *Validator) Search(raw map[string]string) (*SearchParams, error) {
	if err := v.checkUnrecognized(raw, v.accepted); err != nil {
		return nil, err
	}

	fieldQueries, err := v.fieldQueries(raw)
	if err != nil {
		return nil, err
	}

	p := &SearchParams{
		ExactFieldMatch: defaultExactFieldMatch,
		FacetSize:       v.defaultFacets,
		FieldQueries:    fieldQueries,
		Op:              defaultOp,
		Page:            defaultPage,
		PageSize:        v.defaultPageSize,
		SortOrder:       defaultSortOrder,
	}

	if s, ok := raw["exact_field_match"]; ok {
		b, err := validBoolean(s, "exact_field_match")
		if err != nil {
			return nil, err
		}
		p.ExactFieldMatch = b
	}
	if s, ok := raw["facets"]; ok {
		list, err := v.validFieldList(s, "facets")
		if err != nil {
			return nil, err
		}
		p.Facets = list
	}
	if s, ok := raw["facet_size"]; ok {
		n, err := validIntWithRange(s, "facet_size", minFacetSize, v.maxFacetSize)
		if err != nil {
			return nil, err
		}
		p.FacetSize = n
	}
	if s, ok := raw["fields"]; ok {
		list, err := v.validFieldList(s, "fields")
		if err != nil {
			return nil, err
		}
		p.Fields = list
	}
	if _, ok := raw["filter"]; ok {
		filters, err := v.validFilter(raw["filter"])
		if err != nil {
			return nil, err
		}
		p.Filters = filters
	}
	if s, ok := raw["op"]; ok {
		op, err := validAndOr(s, "op")
		if err != nil {
			return nil, err
		}
		p.Op = op
	}
	if s, ok := raw["page"]; ok {
		n, err := validIntWithRange(s, "page", minPage, v.maxPage)
		if err != nil {
			return nil, err
		}
		p.Page = n
	}
	if s, ok := raw["page_size"]; ok {
		n, err := validIntWithRange(s, "page_size", minPageSize, v.maxPageSize)
		if err != nil {
			return nil, err
		}
		p.PageSize = n
	}
	if s, ok := raw["q"]; ok {
		q, err := validText(s, "q")
		if err != nil {
			return nil, err
		}
		p.Q = q
	}
	if err := v.validSortPair(raw, p); err != nil {
		return nil, err
	}
	if s, ok := raw["sort_order"]; ok {
		order, err := validSortOrder(s, "sort_order")
		if err != nil {
			return nil, err
		}
		p.SortOrder = order
	}

	return p, nil
}

// FetchIDs validates a fetch-by-ids request. No query parameters are
// recognized for fetches.
func (v *Validator) FetchIDs(idPath string, raw map[string]string) ([]string, error) {
	if len(raw) > 0 {
		keys := make([]string, 0, len(raw))
		for key := range raw {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		return nil, apierr.NewUnrecognizedParameters(strings.Join(keys, ", "))
	}

	ids := strings.Split(idPath, ",")
	if len(ids) > v.maxIDs {
		return nil, apierr.NewTooManyIdentifiers(
			fmt.Sprintf("The number of ids cannot exceed %d", v.maxIDs))
	}
	for _, id := range ids {
		if !idRegex.MatchString(id) {
			return nil, apierr.NewInvalidParameter(
				"ID must be a String comprised of letters and numbers, and 32 characters long")
		}
	}
	return ids, nil
}

// Random validates a random-item request; only "filter" is accepted.
func (v *Validator) Random(raw map[string]string) (*RandomParams, error) {
	accepted := map[string]bool{"filter": true}
	if err := v.checkUnrecognized(raw, accepted); err != nil {
		return nil, err
	}
	p := &RandomParams{}
	if _, ok := raw["filter"]; ok {
		filters, err := v.validFilter(raw["filter"])
		if err != nil {
			return nil, err
		}
		p.Filters = filters
	}
	return p, nil
}

func (v *Validator) checkUnrecognized(raw map[string]string, accepted map[string]bool) error {
	var unrecognized []string
	for key := range raw {
		if !accepted[key] {
			unrecognized = append(unrecognized, key)
		}
	}
	if len(unrecognized) > 0 {
		sort.Strings(unrecognized)
		return apierr.NewUnrecognizedParameters(strings.Join(unrecognized, ", "))
	}
	return nil
}

// fieldQueries collects every searchable field present in raw, validated
// by its type rule. Absent fields are skipped, not defaulted.
func (v *Validator) fieldQueries(raw map[string]string) ([]FieldQuery, error) {
	var queries []FieldQuery
	for _, name := range v.registry.SearchableFields() {
		value, ok := raw[name]
		if !ok {
			continue
		}
		validated, err := v.validFieldValue(name, value)
		if err != nil {
			return nil, err
		}
		queries = append(queries, FieldQuery{FieldName: name, Value: validated})
	}
	return queries, nil
}

// validFieldValue dispatches on the field's registry type.
func (v *Validator) validFieldValue(name, value string) (string, error) {
	fieldType, ok := v.registry.TypeOf(name)
	if !ok {
		return "", apierr.NewInvalidParameter("Unrecognized parameter: " + name)
	}
	switch fieldType {
	case fields.URLField:
		return validURL(value, name)
	case fields.DateField:
		return validDate(value, name)
	default:
		return validText(value, name)
	}
}

// validFilter parses "<field>:<v1> AND <v2> AND ..." into one Filter per
// value, each checked with the field's type rule.
func (v *Validator) validFilter(filter string) ([]Filter, error) {
	parts := strings.SplitN(filter, ":", 2)
	if len(parts) < 2 {
		return nil, apierr.NewInvalidParameter(filter + " is not a valid filter")
	}

	fieldName := parts[0]
	if !v.registry.IsSearchable(fieldName) {
		return nil, apierr.NewInvalidParameter(fieldName + " is not a valid filter field")
	}

	var filters []Filter
	for _, value := range strings.Split(parts[1], "AND") {
		value = strings.TrimSpace(value)
		validated, err := v.validFieldValue(fieldName, value)
		if err != nil {
			return nil, err
		}
		filters = append(filters, Filter{FieldName: fieldName, Value: validated})
	}
	return filters, nil
}

// validFieldList validates the comma-separated "facets" or "fields"
// parameter. Ignored fields are dropped before the accept check.
func (v *Validator) validFieldList(value, param string) ([]string, error) {
	accepted := make(map[string]bool)
	switch param {
	case "facets":
		for _, name := range v.registry.FacetableFields() {
			accepted[name] = true
		}
	case "fields":
		for _, name := range v.registry.AllFields() {
			accepted[name] = true
		}
	}

	var out []string
	for _, candidate := range strings.Split(value, ",") {
		switch {
		case v.ignored[candidate]:
			// accepted but silently dropped
		case accepted[candidate]:
			out = append(out, candidate)
		case param == "facets" && v.spatialFacet(candidate):
			out = append(out, candidate)
		default:
			return nil, apierr.NewInvalidParameter(
				fmt.Sprintf("'%s' is not an allowable value for '%s'", candidate, param))
		}
	}
	return out, nil
}

// spatialFacet matches the "<coordinates field>:<lat>:<lon>" facet form.
// Colon-separated, because the facets parameter itself splits on commas;
// the bare field name carries no origin and is not a valid facet.
func (v *Validator) spatialFacet(candidate string) bool {
	parts := strings.SplitN(candidate, ":", 2)
	return parts[0] == v.registry.CoordinatesField() && len(parts) == 2 && parts[1] != ""
}

// validSortPair enforces the sort_by / sort_by_pin invariant: a sort on
// the coordinates field requires a pin, and a pin requires that exact
// sort. Violations are errors, never silently defaulted.
func (v *Validator) validSortPair(raw map[string]string, p *SearchParams) error {
	sortBy, hasSortBy := raw["sort_by"]
	sortByPin, hasPin := raw["sort_by_pin"]

	if hasSortBy {
		if !v.registry.IsSortable(sortBy) {
			return apierr.NewInvalidParameter(
				fmt.Sprintf("'%s' is not an allowable value for sort_by", sortBy))
		}
		if sortBy == v.registry.CoordinatesField() && !hasPin {
			return apierr.NewInvalidParameter("The sort_by_pin parameter is required.")
		}
		p.SortBy = sortBy
	}

	if hasPin {
		pin, err := validText(sortByPin, "sort_by_pin")
		if err != nil {
			return err
		}
		if !hasSortBy || sortBy != v.registry.CoordinatesField() {
			return apierr.NewInvalidParameter("The sort_by parameter is required.")
		}
		p.SortByPin = pin
	}
	return nil
}

func validBoolean(s, param string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, apierr.NewInvalidParameter(param + " must be 'true' or 'false'")
	}
}

func validIntWithRange(s, param string, min, max int) (int, error) {
	rule := fmt.Sprintf("%s must be an integer between %d and %d", param, min, max)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apierr.NewInvalidParameter(rule)
	}
	if n < min || n > max {
		return 0, apierr.NewInvalidParameter(rule)
	}
	return n, nil
}

func validText(s, param string) (string, error) {
	if len(s) < minTextLength || len(s) > maxTextLength {
		return "", apierr.NewInvalidParameter(
			fmt.Sprintf("%s must be between %d and %d characters", param, minTextLength, maxTextLength))
	}
	return s, nil
}

func validDate(s, param string) (string, error) {
	if !dateRegex.MatchString(s) {
		return "", apierr.NewInvalidParameter(param + " must be in the form YYYY or YYYY-MM or YYYY-MM-DD")
	}
	return s, nil
}

// validURL checks that the value parses as a URL once optional paired
// quotation marks are stripped; the original quoted string is preserved.
func validURL(s, param string) (string, error) {
	clean := s
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
		clean = s[1 : len(s)-1]
	}
	u, err := url.Parse(clean)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", apierr.NewInvalidParameter(param + " must be a valid URL")
	}
	return s, nil
}

func validAndOr(s, param string) (string, error) {
	if s == "AND" || s == "OR" {
		return s, nil
	}
	return "", apierr.NewInvalidParameter(param + " must be 'AND' or 'OR'")
}

func validSortOrder(s, param string) (string, error) {
	if s == "asc" || s == "desc" {
		return s, nil
	}
	return "", apierr.NewInvalidParameter(param + " must be 'asc' or 'desc'")
}
