// Package search ties parameter validation, query compilation and
// response mapping to the Elasticsearch backend.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"heritage-api/internal/common/apierr"
	"heritage-api/internal/common/logger"
	"heritage-api/internal/common/metrics"
	"heritage-api/internal/common/observability"
	"heritage-api/internal/search/fields"
	"heritage-api/internal/search/params"
	"heritage-api/internal/search/query"
	"heritage-api/internal/search/response"
)

// Controller executes validated searches against one index.
type Controller struct {
	es        *elasticsearch.Client
	validator *params.Validator
	builder   *query.Builder
	tracing   *observability.Tracing
	logger    logger.Logger
}

func NewController(
	es *elasticsearch.Client,
	registry *fields.Registry,
	validator *params.Validator,
	tracing *observability.Tracing,
	log logger.Logger,
) *Controller {
	return &Controller{
		es:        es,
		validator: validator,
		builder:   query.NewBuilder(registry),
		tracing:   tracing,
		logger:    log.WithFields(map[string]interface{}{"component": "search"}),
	}
}

// Search runs the full pipeline for a search request.
func (c *Controller) Search(ctx context.Context, raw map[string]string, index string) (*response.DocList, error) {
	p, err := c.validator.Search(raw)
	if err != nil {
		return nil, err
	}

	body, err := c.compile(func() map[string]interface{} { return c.builder.Search(p) })
	if err != nil {
		return nil, err
	}

	result, err := c.execute(ctx, "search", index, body)
	if err != nil {
		return nil, err
	}

	mapped, err := response.MapSearch(result, p)
	if err != nil {
		c.logger.WithError(err).Error("failed to map search response", nil)
		return nil, apierr.NewInternal()
	}
	return mapped, nil
}

// GetItems fetches one or more documents by identifier.
func (c *Controller) GetItems(ctx context.Context, idPath string, raw map[string]string, index string) (*response.DocList, error) {
	ids, err := c.validator.FetchIDs(idPath, raw)
	if err != nil {
		return nil, err
	}

	body, err := c.compile(func() map[string]interface{} { return c.builder.MultiFetch(ids) })
	if err != nil {
		return nil, err
	}

	result, err := c.execute(ctx, "fetch", index, body)
	if err != nil {
		return nil, err
	}

	mapped, err := response.MapFetch(result)
	if err != nil {
		c.logger.WithError(err).Error("failed to map fetch response", nil)
		return nil, apierr.NewInternal()
	}
	return mapped, nil
}

// Random returns a single randomly scored document.
func (c *Controller) Random(ctx context.Context, raw map[string]string, index string) (*response.DocList, error) {
	p, err := c.validator.Random(raw)
	if err != nil {
		return nil, err
	}

	body, err := c.compile(func() map[string]interface{} { return c.builder.Random(p) })
	if err != nil {
		return nil, err
	}

	result, err := c.execute(ctx, "random", index, body)
	if err != nil {
		return nil, err
	}

	mapped, err := response.MapFetch(result)
	if err != nil {
		c.logger.WithError(err).Error("failed to map random response", nil)
		return nil, apierr.NewInternal()
	}
	return mapped, nil
}

// compile runs the pure builder, converting a compiler panic (a field
// validation let through that the registry cannot resolve) into a 500.
// Such a fault is a logic error and must never surface as a 400.
func (c *Controller) compile(build func() map[string]interface{}) (body map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("query compilation invariant violated", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			err = apierr.NewInternal()
		}
	}()
	return build(), nil
}

// execute sends the compiled query to Elasticsearch. Backend failures are
// opaque to callers and never retried here.
func (c *Controller) execute(ctx context.Context, operation, index string, body map[string]interface{}) (map[string]interface{}, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		c.logger.WithError(err).Error("failed to encode query", nil)
		return nil, apierr.NewInternal()
	}

	spanCtx, span := c.tracing.Start(ctx, "elasticsearch."+operation)
	defer span.End()

	res, err := c.es.Search(
		c.es.Search.WithContext(spanCtx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(encoded)),
	)
	if err != nil {
		metrics.BackendFailuresTotal.WithLabelValues(operation).Inc()
		c.logger.WithError(err).Error("elasticsearch request failed", map[string]interface{}{
			"operation": operation,
			"index":     index,
		})
		return nil, apierr.NewInternal()
	}
	defer res.Body.Close()

	if res.IsError() {
		metrics.BackendFailuresTotal.WithLabelValues(operation).Inc()
		c.logger.Error("elasticsearch returned an error", map[string]interface{}{
			"operation": operation,
			"index":     index,
			"status":    res.Status(),
		})
		return nil, apierr.NewInternal()
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		metrics.BackendFailuresTotal.WithLabelValues(operation).Inc()
		c.logger.WithError(err).Error("failed to decode elasticsearch response", nil)
		return nil, apierr.NewInternal()
	}
	return result, nil
}
