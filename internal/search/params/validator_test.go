package params

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heritage-api/internal/common/apierr"
	"heritage-api/internal/common/config"
	"heritage-api/internal/search/fields"
)

// ==========================
// Test Helper Functions
// ==========================

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		MaxPageSize:     500,
		DefaultPageSize: 10,
		MaxIDs:          500,
		MaxPage:         100,
		MaxFacetSize:    2000,
		DefaultFacets:   50,
	}
}

func newTestValidator() *Validator {
	return NewValidator(fields.DefaultRegistry(), testSearchConfig())
}

func assertInvalid(t *testing.T, err error, wantMessage string) {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := err.(*apierr.Error)
	require.True(t, ok, "expected an api error, got %T", err)
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, wantMessage, apiErr.Message)
}

// ==========================
// Search Validation Tests
// ==========================

func TestValidator_Search_Defaults(t *testing.T) {
	v := newTestValidator()

	p, err := v.Search(map[string]string{})
	require.NoError(t, err)

	assert.False(t, p.ExactFieldMatch)
	assert.Empty(t, p.Facets)
	assert.Equal(t, 50, p.FacetSize)
	assert.Empty(t, p.Fields)
	assert.Empty(t, p.FieldQueries)
	assert.Empty(t, p.Filters)
	assert.Equal(t, "AND", p.Op)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PageSize)
	assert.Equal(t, "", p.Q)
	assert.Equal(t, "", p.SortBy)
	assert.Equal(t, "asc", p.SortOrder)
}

func TestValidator_Search_ExplicitValuesSurviveDefaulting(t *testing.T) {
	v := newTestValidator()

	p, err := v.Search(map[string]string{
		"q":         "cats",
		"page":      "2",
		"page_size": "10",
	})
	require.NoError(t, err)

	assert.Equal(t, "cats", p.Q)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 10, p.PageSize)
}

func TestValidator_Search_IsIdempotent(t *testing.T) {
	v := newTestValidator()
	raw := map[string]string{
		"q":                     "postcards",
		"provider.name":         "Some Provider",
		"exact_field_match":     "true",
		"facets":                "sourceResource.type",
		"sourceResource.format": "photograph",
	}

	first, err := v.Search(raw)
	require.NoError(t, err)
	second, err := v.Search(raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestValidator_Search_UnrecognizedParameters(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		raw     map[string]string
		wantMsg string
	}{
		{
			name:    "single unknown key",
			raw:     map[string]string{"foo": "bar"},
			wantMsg: "Unrecognized parameters: foo",
		},
		{
			name:    "multiple unknown keys listed sorted",
			raw:     map[string]string{"zzz": "1", "aaa": "2", "q": "cats"},
			wantMsg: "Unrecognized parameters: aaa, zzz",
		},
		{
			name:    "unsearchable registry field is unrecognized",
			raw:     map[string]string{"sourceResource.spatial.coordinates": "40,-70"},
			wantMsg: "Unrecognized parameters: sourceResource.spatial.coordinates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Search(tt.raw)
			require.Error(t, err)
			apiErr, ok := err.(*apierr.Error)
			require.True(t, ok)
			assert.Equal(t, 400, apiErr.Code)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
		})
	}
}

func TestValidator_Search_FieldQueries(t *testing.T) {
	v := newTestValidator()

	p, err := v.Search(map[string]string{
		"sourceResource.title": "maps",
		"provider.name":        "Internet Archive",
	})
	require.NoError(t, err)

	require.Len(t, p.FieldQueries, 2)
	// Field queries come back in schema order, not map order.
	assert.Equal(t, "provider.name", p.FieldQueries[0].FieldName)
	assert.Equal(t, "Internet Archive", p.FieldQueries[0].Value)
	assert.Equal(t, "sourceResource.title", p.FieldQueries[1].FieldName)
	assert.Equal(t, "maps", p.FieldQueries[1].Value)
}

func TestValidator_Search_RuleViolations(t *testing.T) {
	v := newTestValidator()

	longText := strings.Repeat("x", 201)

	tests := []struct {
		name    string
		raw     map[string]string
		wantMsg string
	}{
		{
			name:    "q too short",
			raw:     map[string]string{"q": "a"},
			wantMsg: "Invalid parameter: q must be between 2 and 200 characters",
		},
		{
			name:    "q too long",
			raw:     map[string]string{"q": longText},
			wantMsg: "Invalid parameter: q must be between 2 and 200 characters",
		},
		{
			name:    "page not an integer",
			raw:     map[string]string{"page": "two"},
			wantMsg: "Invalid parameter: page must be an integer between 1 and 100",
		},
		{
			name:    "page zero",
			raw:     map[string]string{"page": "0"},
			wantMsg: "Invalid parameter: page must be an integer between 1 and 100",
		},
		{
			name:    "page_size above cap",
			raw:     map[string]string{"page_size": "501"},
			wantMsg: "Invalid parameter: page_size must be an integer between 0 and 500",
		},
		{
			name:    "facet_size above cap",
			raw:     map[string]string{"facet_size": "2001"},
			wantMsg: "Invalid parameter: facet_size must be an integer between 0 and 2000",
		},
		{
			name:    "boolean must be literal",
			raw:     map[string]string{"exact_field_match": "TRUE"},
			wantMsg: "Invalid parameter: exact_field_match must be 'true' or 'false'",
		},
		{
			name:    "op must be AND or OR",
			raw:     map[string]string{"op": "XOR"},
			wantMsg: "Invalid parameter: op must be 'AND' or 'OR'",
		},
		{
			name:    "sort_order must be asc or desc",
			raw:     map[string]string{"sort_order": "ascending"},
			wantMsg: "Invalid parameter: sort_order must be 'asc' or 'desc'",
		},
		{
			name:    "date field shape",
			raw:     map[string]string{"sourceResource.date.before": "17-76"},
			wantMsg: "Invalid parameter: sourceResource.date.before must be in the form YYYY or YYYY-MM or YYYY-MM-DD",
		},
		{
			name:    "url field must parse",
			raw:     map[string]string{"isShownAt": "not a url"},
			wantMsg: "Invalid parameter: isShownAt must be a valid URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Search(tt.raw)
			assertInvalid(t, err, tt.wantMsg)
		})
	}
}

func TestValidator_Search_DateAccepted(t *testing.T) {
	v := newTestValidator()

	for _, value := range []string{"1776", "1776-07", "1776-07-04"} {
		p, err := v.Search(map[string]string{"sourceResource.date.before": value})
		require.NoError(t, err, value)
		require.Len(t, p.FieldQueries, 1)
		assert.Equal(t, value, p.FieldQueries[0].Value)
	}

	// Trailing garbage must not sneak past the shape check.
	_, err := v.Search(map[string]string{"sourceResource.date.before": "1776-07-04T00"})
	assert.Error(t, err)
}

func TestValidator_Search_URLKeepsQuotes(t *testing.T) {
	v := newTestValidator()

	p, err := v.Search(map[string]string{"isShownAt": `"https://example.org/item/1"`})
	require.NoError(t, err)
	require.Len(t, p.FieldQueries, 1)
	assert.Equal(t, `"https://example.org/item/1"`, p.FieldQueries[0].Value)
}

func TestValidator_Search_Filter(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name        string
		filter      string
		wantFilters []Filter
		wantMsg     string
	}{
		{
			name:   "single value",
			filter: "provider.name:Internet Archive",
			wantFilters: []Filter{
				{FieldName: "provider.name", Value: "Internet Archive"},
			},
		},
		{
			name:   "AND splits into one filter per value",
			filter: "sourceResource.type:image AND text",
			wantFilters: []Filter{
				{FieldName: "sourceResource.type", Value: "image"},
				{FieldName: "sourceResource.type", Value: "text"},
			},
		},
		{
			name:    "missing colon",
			filter:  "providername",
			wantMsg: "Invalid parameter: providername is not a valid filter",
		},
		{
			name:    "unsearchable field",
			filter:  "sourceResource.spatial.coordinates:40,-70",
			wantMsg: "Invalid parameter: sourceResource.spatial.coordinates is not a valid filter field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := v.Search(map[string]string{"filter": tt.filter})
			if tt.wantMsg != "" {
				assertInvalid(t, err, tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFilters, p.Filters)
		})
	}
}

func TestValidator_Search_FieldLists(t *testing.T) {
	v := newTestValidator()

	t.Run("facets accepts facetable fields", func(t *testing.T) {
		p, err := v.Search(map[string]string{"facets": "provider.name,sourceResource.type"})
		require.NoError(t, err)
		assert.Equal(t, []string{"provider.name", "sourceResource.type"}, p.Facets)
	})

	t.Run("facets rejects non-facetable fields", func(t *testing.T) {
		_, err := v.Search(map[string]string{"facets": "sourceResource.description"})
		assertInvalid(t, err, "Invalid parameter: 'sourceResource.description' is not an allowable value for 'facets'")
	})

	t.Run("ignored field dropped before accept check", func(t *testing.T) {
		p, err := v.Search(map[string]string{"facets": "sourceResource.subtitle,provider.name"})
		require.NoError(t, err)
		assert.Equal(t, []string{"provider.name"}, p.Facets)
	})

	t.Run("spatial facet syntax passes through", func(t *testing.T) {
		p, err := v.Search(map[string]string{"facets": "sourceResource.spatial.coordinates:41.8:-87.6"})
		require.NoError(t, err)
		assert.Equal(t, []string{"sourceResource.spatial.coordinates:41.8:-87.6"}, p.Facets)
	})

	t.Run("spatial facet validates inside a facet list", func(t *testing.T) {
		p, err := v.Search(map[string]string{
			"facets": "provider.name,sourceResource.spatial.coordinates:41.8:-87.6",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{
			"provider.name",
			"sourceResource.spatial.coordinates:41.8:-87.6",
		}, p.Facets)
	})

	t.Run("bare coordinates facet rejected", func(t *testing.T) {
		_, err := v.Search(map[string]string{"facets": "sourceResource.spatial.coordinates"})
		assertInvalid(t, err, "Invalid parameter: 'sourceResource.spatial.coordinates' is not an allowable value for 'facets'")
	})

	t.Run("coordinates facet with empty origin rejected", func(t *testing.T) {
		_, err := v.Search(map[string]string{"facets": "sourceResource.spatial.coordinates:"})
		assertInvalid(t, err, "Invalid parameter: 'sourceResource.spatial.coordinates:' is not an allowable value for 'facets'")
	})

	t.Run("fields accepts any schema field", func(t *testing.T) {
		p, err := v.Search(map[string]string{"fields": "id,sourceResource.title"})
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "sourceResource.title"}, p.Fields)
	})

	t.Run("fields rejects unknown names", func(t *testing.T) {
		_, err := v.Search(map[string]string{"fields": "id,bogus"})
		assertInvalid(t, err, "Invalid parameter: 'bogus' is not an allowable value for 'fields'")
	})
}

func TestValidator_Search_SortPairing(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		raw     map[string]string
		wantBy  string
		wantPin string
		wantMsg string
	}{
		{
			name:   "plain sortable field",
			raw:    map[string]string{"sort_by": "sourceResource.title"},
			wantBy: "sourceResource.title",
		},
		{
			name:    "unsortable field rejected",
			raw:     map[string]string{"sort_by": "sourceResource.type"},
			wantMsg: "Invalid parameter: 'sourceResource.type' is not an allowable value for sort_by",
		},
		{
			name:    "coordinates sort without pin",
			raw:     map[string]string{"sort_by": "sourceResource.spatial.coordinates"},
			wantMsg: "Invalid parameter: The sort_by_pin parameter is required.",
		},
		{
			name:    "pin without sort_by",
			raw:     map[string]string{"sort_by_pin": "41.8,-87.6"},
			wantMsg: "Invalid parameter: The sort_by parameter is required.",
		},
		{
			name: "pin with non-coordinates sort_by",
			raw: map[string]string{
				"sort_by":     "sourceResource.title",
				"sort_by_pin": "41.8,-87.6",
			},
			wantMsg: "Invalid parameter: The sort_by parameter is required.",
		},
		{
			name: "coordinates sort with pin",
			raw: map[string]string{
				"sort_by":     "sourceResource.spatial.coordinates",
				"sort_by_pin": "41.8,-87.6",
			},
			wantBy:  "sourceResource.spatial.coordinates",
			wantPin: "41.8,-87.6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := v.Search(tt.raw)
			if tt.wantMsg != "" {
				assertInvalid(t, err, tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBy, p.SortBy)
			assert.Equal(t, tt.wantPin, p.SortByPin)
		})
	}
}

// ==========================
// Fetch Validation Tests
// ==========================

func TestValidator_FetchIDs(t *testing.T) {
	v := newTestValidator()

	validID := strings.Repeat("a1", 16)

	t.Run("valid id list", func(t *testing.T) {
		ids, err := v.FetchIDs(validID+","+validID, map[string]string{})
		require.NoError(t, err)
		assert.Equal(t, []string{validID, validID}, ids)
	})

	t.Run("query parameters are not recognized", func(t *testing.T) {
		_, err := v.FetchIDs(validID, map[string]string{"q": "cats", "page": "2"})
		require.Error(t, err)
		apiErr := err.(*apierr.Error)
		assert.Equal(t, "Unrecognized parameters: page, q", apiErr.Message)
	})

	t.Run("too many ids", func(t *testing.T) {
		ids := make([]string, 501)
		for i := range ids {
			ids[i] = validID
		}
		_, err := v.FetchIDs(strings.Join(ids, ","), map[string]string{})
		assertInvalid(t, err, "The number of ids cannot exceed 500")
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := v.FetchIDs("short", map[string]string{})
		assertInvalid(t, err, "Invalid parameter: ID must be a String comprised of letters and numbers, and 32 characters long")
	})

	t.Run("hyphenated id rejected", func(t *testing.T) {
		_, err := v.FetchIDs(strings.Repeat("a", 31)+"-", map[string]string{})
		require.Error(t, err)
	})
}

// ==========================
// Random Validation Tests
// ==========================

func TestValidator_Random(t *testing.T) {
	v := newTestValidator()

	t.Run("no parameters", func(t *testing.T) {
		p, err := v.Random(map[string]string{})
		require.NoError(t, err)
		assert.Empty(t, p.Filters)
	})

	t.Run("filter accepted", func(t *testing.T) {
		p, err := v.Random(map[string]string{"filter": "provider.name:Some Provider"})
		require.NoError(t, err)
		assert.Equal(t, []Filter{{FieldName: "provider.name", Value: "Some Provider"}}, p.Filters)
	})

	t.Run("anything else rejected", func(t *testing.T) {
		_, err := v.Random(map[string]string{"q": "cats"})
		require.Error(t, err)
		apiErr := err.(*apierr.Error)
		assert.Equal(t, "Unrecognized parameters: q", apiErr.Message)
	})
}

func TestValidAPIKey(t *testing.T) {
	assert.True(t, ValidAPIKey(strings.Repeat("a", 32)))
	assert.True(t, ValidAPIKey(strings.Repeat("a", 28)+"-1-2"))
	assert.False(t, ValidAPIKey(strings.Repeat("a", 31)))
	assert.False(t, ValidAPIKey(strings.Repeat("a", 33)))
	assert.False(t, ValidAPIKey(strings.Repeat("a", 31)+"_"))
	assert.False(t, ValidAPIKey(""))
}
