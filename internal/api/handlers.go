// Package api exposes the search pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"heritage-api/internal/accounts"
	"heritage-api/internal/common/apierr"
	"heritage-api/internal/common/logger"
	"heritage-api/internal/common/metrics"
	"heritage-api/internal/common/observability"
	"heritage-api/internal/search"
)

// AccountSource resolves API keys to accounts; it is satisfied by both
// the plain and the cached repository.
type AccountSource interface {
	FindByAPIKey(ctx context.Context, key string) (*accounts.Account, error)
}

// Handlers carries the dependencies of the HTTP layer.
type Handlers struct {
	controller *search.Controller
	accountSrc AccountSource
	repo       *accounts.Repository
	emailer    *accounts.Emailer
	notifier   *accounts.Notifier
	obs        *observability.Observability
	logger     logger.Logger
	index      string
	requireKey bool
}

func NewHandlers(
	controller *search.Controller,
	accountSrc AccountSource,
	repo *accounts.Repository,
	emailer *accounts.Emailer,
	notifier *accounts.Notifier,
	obs *observability.Observability,
	log logger.Logger,
	index string,
	requireKey bool,
) *Handlers {
	return &Handlers{
		controller: controller,
		accountSrc: accountSrc,
		repo:       repo,
		emailer:    emailer,
		notifier:   notifier,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "api"}),
		index:      index,
		requireKey: requireKey,
	}
}

// rawParams flattens the query string to single values, collapsing
// repeated parameters to their first occurrence. The api_key parameter
// belongs to the auth layer and is stripped before validation.
func rawParams(r *http.Request) map[string]string {
	raw := make(map[string]string)
	for key, values := range r.URL.Query() {
		if key == "api_key" {
			continue
		}
		if len(values) > 0 {
			raw[key] = values[0]
		}
	}
	return raw
}

func (h *Handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "search", func(ctx context.Context) (interface{}, error) {
		return h.controller.Search(ctx, rawParams(r), h.index)
	})
}

func (h *Handlers) handleFetch(w http.ResponseWriter, r *http.Request) {
	ids := chi.URLParam(r, "ids")
	h.run(w, r, "fetch", func(ctx context.Context) (interface{}, error) {
		return h.controller.GetItems(ctx, ids, rawParams(r), h.index)
	})
}

func (h *Handlers) handleRandom(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "random", func(ctx context.Context) (interface{}, error) {
		return h.controller.Random(ctx, rawParams(r), h.index)
	})
}

// handleCreateAPIKey provisions an account for the address in the path
// and emails the key. An existing account gets its key re-sent rather
// than a new one.
func (h *Handlers) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if !accounts.IsValidEmail(email) {
		h.writeError(w, apierr.NewInvalidParameter(email+" is not a valid email address"))
		return
	}

	ctx := r.Context()
	account, err := h.repo.FindByEmail(ctx, email)
	if err != nil {
		h.logger.WithError(err).Error("account lookup failed", nil)
		h.writeError(w, apierr.NewInternal())
		return
	}

	created := false
	if account == nil {
		account, err = h.repo.CreateAccount(ctx, email)
		if err != nil {
			h.logger.WithError(err).Error("account creation failed", nil)
			h.writeError(w, apierr.NewInternal())
			return
		}
		created = true
	}

	if h.emailer != nil {
		if err := h.emailer.SendAPIKey(ctx, account.Email, account.Key); err != nil {
			h.writeError(w, apierr.NewInternal())
			return
		}
	}
	if created && h.notifier != nil {
		h.notifier.AccountCreated(ctx, email)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, map[string]string{
		"message": "API key created and sent via email. Be sure to check your Spam folder, too.",
	})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// run wraps one search operation with metrics and error mapping.
func (h *Handlers) run(w http.ResponseWriter, r *http.Request, operation string, op func(context.Context) (interface{}, error)) {
	start := time.Now()
	result, err := op(r.Context())
	duration := time.Since(start)

	metrics.SearchRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if h.obs != nil {
		h.obs.RecordDuration(r.Context(), operation, duration)
	}

	if err != nil {
		status := "error"
		if apierr.IsBadRequest(err) {
			status = "rejected"
		}
		metrics.SearchRequestsTotal.WithLabelValues(operation, status).Inc()
		if h.obs != nil {
			h.obs.RecordRequest(r.Context(), operation, status)
		}
		h.writeError(w, err)
		return
	}

	metrics.SearchRequestsTotal.WithLabelValues(operation, "ok").Inc()
	if h.obs != nil {
		h.obs.RecordRequest(r.Context(), operation, "ok")
	}
	h.writeJSON(w, http.StatusOK, result)
}

// apiKeyAuth rejects requests without a well-formed key bound to an
// enabled account. Authorization policy itself lives upstream; this is
// only the account gate.
func (h *Handlers) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.requireKey {
			next.ServeHTTP(w, r)
			return
		}

		key := r.URL.Query().Get("api_key")
		if !accounts.IsValidAPIKey(key) {
			h.writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"message": "Unauthorized: Missing, invalid, or inactive api_key",
				"code":    http.StatusForbidden,
			})
			return
		}

		account, err := h.accountSrc.FindByAPIKey(r.Context(), key)
		if err != nil {
			h.logger.WithError(err).Error("api key lookup failed", nil)
			h.writeError(w, apierr.NewInternal())
			return
		}
		if account == nil || !account.Enabled {
			h.writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"message": "Unauthorized: Missing, invalid, or inactive api_key",
				"code":    http.StatusForbidden,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestID tags every request for log correlation.
func (h *Handlers) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		h.logger.Debug("request", map[string]interface{}{
			"requestId": id,
			"method":    r.Method,
			"path":      r.URL.Path,
		})
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		apiErr = apierr.NewInternal()
	}
	h.writeJSON(w, apiErr.Code, apiErr)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("failed to encode response", nil)
	}
}
