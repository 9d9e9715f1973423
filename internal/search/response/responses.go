// Package response maps raw Elasticsearch results into the public
// response envelope.
package response

// DocList is the public success envelope.
type DocList struct {
	Count  int64                    `json:"count"`
	Limit  *int                     `json:"limit,omitempty"`
	Start  *int                     `json:"start,omitempty"`
	Docs   []map[string]interface{} `json:"docs"`
	Facets *FacetList               `json:"facets,omitempty"`
}

// FacetList carries the aggregation results alongside the documents.
type FacetList struct {
	Facets []Facet `json:"facets"`
}

type Facet struct {
	Field   string   `json:"field"`
	Type    string   `json:"type"`
	Buckets []Bucket `json:"buckets"`
}

type Bucket struct {
	Key         string   `json:"key,omitempty"`
	KeyAsString string   `json:"keyAsString,omitempty"`
	DocCount    int64    `json:"docCount,omitempty"`
	From        *float64 `json:"from,omitempty"`
	To          *float64 `json:"to,omitempty"`
}
