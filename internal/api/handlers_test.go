package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"

	"heritage-api/internal/accounts"
	"heritage-api/internal/common/config"
	"heritage-api/internal/common/logger"
	"heritage-api/internal/common/observability"
	"heritage-api/internal/search"
	"heritage-api/internal/search/fields"
	"heritage-api/internal/search/params"
)

// ==========================
// Test Helper Functions
// ==========================

type stubAccounts struct {
	accounts map[string]*accounts.Account
	err      error
}

func (s *stubAccounts) FindByAPIKey(_ context.Context, key string) (*accounts.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.accounts[key], nil
}

func stubBackend(t *testing.T, result map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}))
	t.Cleanup(server.Close)
	return server
}

func emptyBackendResult() map[string]interface{} {
	return map[string]interface{}{
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": float64(0)},
			"hits":  []interface{}{},
		},
	}
}

type testDeps struct {
	router http.Handler
	dbMock sqlmock.Sqlmock
	source *stubAccounts
}

func newTestRouter(t *testing.T, requireKey bool) *testDeps {
	t.Helper()

	backend := stubBackend(t, emptyBackendResult())
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{backend.URL}})
	require.NoError(t, err)

	registry := fields.DefaultRegistry()
	validator := params.NewValidator(registry, config.SearchConfig{
		MaxPageSize:     500,
		DefaultPageSize: 10,
		MaxIDs:          500,
		MaxPage:         100,
		MaxFacetSize:    2000,
		DefaultFacets:   50,
	})
	tracing, err := observability.NewTracing("test", "")
	require.NoError(t, err)

	log := logger.NewNoOpLogger()
	controller := search.NewController(es, registry, validator, tracing, log)

	db, dbMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	source := &stubAccounts{accounts: map[string]*accounts.Account{}}
	handlers := NewHandlers(
		controller,
		source,
		accounts.NewRepository(db),
		nil,
		nil,
		nil,
		log,
		"items_index",
		requireKey,
	)
	return &testDeps{router: NewRouter(handlers), dbMock: dbMock, source: source}
}

func doRequest(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

const errorEnvelopeSchema = `{
	"type": "object",
	"required": ["message", "code"],
	"properties": {
		"message": {"type": "string", "minLength": 1},
		"code": {"type": "integer"}
	},
	"additionalProperties": false
}`

func assertErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, wantMessage string) {
	t.Helper()
	assert.Equal(t, wantCode, rec.Code)

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(errorEnvelopeSchema),
		gojsonschema.NewBytesLoader(rec.Body.Bytes()),
	)
	require.NoError(t, err)
	assert.True(t, result.Valid(), "envelope violations: %v", result.Errors())

	var envelope struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, wantCode, envelope.Code)
	if wantMessage != "" {
		assert.Equal(t, wantMessage, envelope.Message)
	}
}

// ==========================
// Auth Middleware Tests
// ==========================

func TestRouter_APIKeyAuth(t *testing.T) {
	key := strings.Repeat("a", 32)

	tests := []struct {
		name       string
		target     string
		account    *accounts.Account
		wantStatus int
	}{
		{
			name:       "missing key",
			target:     "/v2/items",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "malformed key",
			target:     "/v2/items?api_key=short",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "unknown key",
			target:     "/v2/items?api_key=" + key,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "disabled account",
			target:     "/v2/items?api_key=" + key,
			account:    &accounts.Account{Key: key, Enabled: false},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "enabled account",
			target:     "/v2/items?api_key=" + key,
			account:    &accounts.Account{Key: key, Enabled: true},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestRouter(t, true)
			if tt.account != nil {
				deps.source.accounts[tt.account.Key] = tt.account
			}

			rec := doRequest(t, deps.router, http.MethodGet, tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusForbidden {
				assertErrorEnvelope(t, rec, http.StatusForbidden,
					"Unauthorized: Missing, invalid, or inactive api_key")
			}
		})
	}
}

func TestRouter_AuthDisabled(t *testing.T) {
	deps := newTestRouter(t, false)

	rec := doRequest(t, deps.router, http.MethodGet, "/v2/items")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_OperationalEndpointsSkipAuth(t *testing.T) {
	deps := newTestRouter(t, true)

	assert.Equal(t, http.StatusOK, doRequest(t, deps.router, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, doRequest(t, deps.router, http.MethodGet, "/metrics").Code)
}

// ==========================
// Search Endpoint Tests
// ==========================

func TestRouter_SearchSuccess(t *testing.T) {
	deps := newTestRouter(t, false)

	rec := doRequest(t, deps.router, http.MethodGet, "/v2/items?q=cats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, float64(1), body["start"])
	assert.Equal(t, float64(10), body["limit"])
}

func TestRouter_SearchValidationError(t *testing.T) {
	deps := newTestRouter(t, false)

	rec := doRequest(t, deps.router, http.MethodGet, "/v2/items?nonsense=1")
	assertErrorEnvelope(t, rec, http.StatusBadRequest, "Unrecognized parameters: nonsense")
}

func TestRouter_SearchStripsAPIKeyFromParams(t *testing.T) {
	key := strings.Repeat("a", 32)
	deps := newTestRouter(t, true)
	deps.source.accounts[key] = &accounts.Account{Key: key, Enabled: true}

	// api_key must not reach the validator as an unrecognized parameter.
	rec := doRequest(t, deps.router, http.MethodGet, "/v2/items?api_key="+key+"&q=cats")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_FetchValidationError(t *testing.T) {
	deps := newTestRouter(t, false)

	rec := doRequest(t, deps.router, http.MethodGet, "/v2/items/not-an-id")
	assertErrorEnvelope(t, rec, http.StatusBadRequest,
		"Invalid parameter: ID must be a String comprised of letters and numbers, and 32 characters long")
}

// ==========================
// API Key Provisioning Tests
// ==========================

func accountTableRows(key, email string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "key", "email", "enabled", "staff", "created_at", "updated_at"}).
		AddRow(int64(1), key, email, true, false, now, now)
}

func TestRouter_CreateAPIKey(t *testing.T) {
	t.Run("invalid email", func(t *testing.T) {
		deps := newTestRouter(t, true)
		rec := doRequest(t, deps.router, http.MethodPost, "/api_key/not-an-email")
		assertErrorEnvelope(t, rec, http.StatusBadRequest,
			"Invalid parameter: not-an-email is not a valid email address")
	})

	t.Run("new account is created", func(t *testing.T) {
		deps := newTestRouter(t, true)
		deps.dbMock.ExpectQuery("select id, key, email").
			WithArgs("new@example.org").
			WillReturnError(sql.ErrNoRows)
		deps.dbMock.ExpectQuery("insert into account").
			WithArgs(sqlmock.AnyArg(), "new@example.org").
			WillReturnRows(accountTableRows(strings.Repeat("b", 32), "new@example.org"))

		rec := doRequest(t, deps.router, http.MethodPost, "/api_key/new@example.org")
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NoError(t, deps.dbMock.ExpectationsWereMet())
	})

	t.Run("existing account is not recreated", func(t *testing.T) {
		deps := newTestRouter(t, true)
		deps.dbMock.ExpectQuery("select id, key, email").
			WithArgs("user@example.org").
			WillReturnRows(accountTableRows(strings.Repeat("c", 32), "user@example.org"))

		rec := doRequest(t, deps.router, http.MethodPost, "/api_key/user@example.org")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, deps.dbMock.ExpectationsWereMet())
	})
}
