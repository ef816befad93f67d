package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"accounts/backend/internal/config"
	"accounts/backend/internal/infrastructure/password"
	"accounts/backend/internal/infrastructure/token"
	"accounts/backend/internal/observability"
	"accounts/backend/internal/storetest"
	authusecase "accounts/backend/internal/usecase/auth"
	orgusecase "accounts/backend/internal/usecase/organisation"
	userusecase "accounts/backend/internal/usecase/user"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	store   *storetest.Store
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil, nil)
}

// newTestServerWith lets a test adjust the config and wrap the token manager the server uses.
func newTestServerWith(
	t *testing.T,
	tweak func(*config.Config),
	wrap func(authusecase.TokenManager) authusecase.TokenManager,
) *testServer {
	t.Helper()
	cfg := config.Config{
		HTTPPort:       "0",
		AllowedOrigins: []string{"*"},
		SecretKey:      "handler-test-secret",
		Algorithm:      "HS256",
		TokenTTL:       time.Hour,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	authCfg, err := authusecase.NewConfig(cfg.SecretKey, cfg.Algorithm, cfg.TokenTTL, 0, authusecase.HashCost{
		MemoryKiB: 256, Iterations: 1, Parallelism: 1, Concurrency: 2,
	})
	require.NoError(t, err)

	manager, err := token.NewJWTManager(authCfg)
	require.NoError(t, err)
	var tokens authusecase.TokenManager = manager
	if wrap != nil {
		tokens = wrap(tokens)
	}
	store := storetest.New()
	logger := discardLogger()
	metrics := observability.NewMetrics()

	srv := NewServer(cfg, logger, metrics, tokens,
		authusecase.NewService(store.Users(), password.NewArgon2Hasher(authCfg), tokens, logger),
		userusecase.NewService(store.Users()),
		orgusecase.NewService(store.Organisations(), store.Users()),
	)
	return &testServer{handler: srv.Handler(), store: store, metrics: metrics}
}

func (ts *testServer) do(t *testing.T, method, path, body, cookie string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		withCookie(r, cookie)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, r)
	return rec
}

type registered struct {
	token  string
	userID string
}

func (ts *testServer) register(t *testing.T, first, email string) registered {
	t.Helper()
	body := `{"first_name":"` + first + `","last_name":"Doe","email":"` + email + `","password":"s3cret","phone":"0123456789"}`
	rec := ts.do(t, http.MethodPost, "/auth/register", body, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			AccessToken string `json:"access_token"`
			User        struct {
				UserID string `json:"userId"`
			} `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return registered{token: resp.Data.AccessToken, userID: resp.Data.User.UserID}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	body := `{"first_name":"Jane","last_name":"Doe","email":"Jane@Example.com","password":"s3cret","phone":"0123456789"}`
	rec := ts.do(t, http.MethodPost, "/auth/register", body, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode(t, rec)
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "Registration successful", resp["message"])
	data := resp["data"].(map[string]any)
	assert.NotEmpty(t, data["access_token"])
	user := data["user"].(map[string]any)
	assert.Equal(t, "jane@example.com", user["email"])
	assert.Equal(t, "Jane", user["first_name"])
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, rec.Body.String(), "argon2id")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, TokenCookie, cookies[0].Name)
	assert.Equal(t, data["access_token"], cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	t.Run("duplicate email", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"status":"Bad Request","message":"Registration unsuccessful","statusCode":400}`, rec.Body.String())
	})

	t.Run("validation errors", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/auth/register", `{"first_name":"J4ne","email":"nope","password":"x","phone":"12a"}`, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.JSONEq(t, `{"errors":[
			{"fields":"first_name","message":"first name can only contain alphabet and no numbers"},
			{"fields":"last_name","message":"Field required"},
			{"fields":"email","message":"value is not a valid email address"},
			{"fields":"phone","message":"Invalid phone number 12a provided, phone number can only be digit"}
		]}`, rec.Body.String())
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/auth/register", `{"first_name":`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"invalid JSON payload"}`, rec.Body.String())
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/auth/register", "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	})
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	jane := ts.register(t, "Jane", "jane@example.com")

	rec := ts.do(t, http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"s3cret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "Login successful", resp["message"])
	user := resp["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, jane.userID, user["userId"])
	require.Len(t, rec.Result().Cookies(), 1)

	for name, body := range map[string]string{
		"wrong password": `{"email":"jane@example.com","password":"nope"}`,
		"unknown email":  `{"email":"who@example.com","password":"s3cret"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/auth/login", body, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, rejectionBody, rec.Body.String())
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/organisations"},
		{http.MethodPost, "/api/organisations"},
		{http.MethodGet, "/api/organisations/org-1"},
		{http.MethodPost, "/api/organisations/org-1/users"},
		{http.MethodGet, "/api/users/u1"},
	} {
		rec := ts.do(t, tc.method, tc.path, `{"name":"Acme"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.JSONEq(t, rejectionBody, rec.Body.String(), tc.path)
	}
}

func TestOrganisationFlow(t *testing.T) {
	ts := newTestServer(t)
	jane := ts.register(t, "Jane", "jane@example.com")
	john := ts.register(t, "John", "john@example.com")

	rec := ts.do(t, http.MethodGet, "/api/organisations", "", jane.token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"organization fetched","data":{"organisations":[]}}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/organisations", `{"name":"Acme","description":"widgets"}`, jane.token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "Success", created["status"])
	assert.Equal(t, "Organisation created successfully", created["message"])
	orgID := created["data"].(map[string]any)["orgId"].(string)
	require.NotEmpty(t, orgID)

	t.Run("duplicate name", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/organisations", `{"name":"Acme"}`, john.token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"status":"Unsuccessful request","message":"Client error","statusCode":400}`, rec.Body.String())
	})

	t.Run("missing name", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/organisations", `{"description":"x"}`, john.token)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.JSONEq(t, `{"errors":[{"fields":"name","message":"Field required"}]}`, rec.Body.String())
	})

	t.Run("non member cannot read or add", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/organisations/"+orgID, "", john.token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"status":"Bad request","message":"Organisation Not Found","statusCode":404}`, rec.Body.String())

		rec = ts.do(t, http.MethodPost, "/api/organisations/"+orgID+"/users", `{"userId":"`+john.userID+`"}`, john.token)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = ts.do(t, http.MethodGet, "/api/users/"+jane.userID, "", john.token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"message":"User not found"}`, rec.Body.String())
	})

	rec = ts.do(t, http.MethodGet, "/api/organisations/"+orgID, "", jane.token)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode(t, rec)
	assert.Equal(t, "Organization found", found["message"])
	assert.Equal(t, "Acme", found["data"].(map[string]any)["name"])

	rec = ts.do(t, http.MethodPost, "/api/organisations/"+orgID+"/users", `{"userId":"unknown"}`, jane.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"Bad Request","message":"user not found","statusCode":404}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/organisations/"+orgID+"/users", `{}`, jane.token)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/organisations/"+orgID+"/users", `{"userId":"`+john.userID+`"}`, jane.token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"User added to organisation successfully"}`, rec.Body.String())
	assert.Equal(t, 2, len(ts.store.Members(orgID)))

	rec = ts.do(t, http.MethodGet, "/api/users/"+jane.userID, "", john.token)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode(t, rec)
	assert.Equal(t, "User found", user["message"])
	assert.Equal(t, "jane@example.com", user["data"].(map[string]any)["email"])

	rec = ts.do(t, http.MethodGet, "/api/organisations", "", john.token)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["data"].(map[string]any)["organisations"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, orgID, list[0].(map[string]any)["orgId"])
}

func TestMalformedIDsReadAsNotFound(t *testing.T) {
	ts := newTestServer(t)
	jane := ts.register(t, "Jane", "jane@example.com")
	john := ts.register(t, "John", "john@example.com")

	rec := ts.do(t, http.MethodPost, "/api/organisations", `{"name":"Acme"}`, jane.token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orgID := decode(t, rec)["data"].(map[string]any)["orgId"].(string)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantBody string
	}{
		{
			name:     "organisation",
			method:   http.MethodGet,
			path:     "/api/organisations/abc",
			wantBody: `{"status":"Bad request","message":"Organisation Not Found","statusCode":404}`,
		},
		{
			name:     "user",
			method:   http.MethodGet,
			path:     "/api/users/abc",
			wantBody: `{"message":"User not found"}`,
		},
		{
			name:     "add member to malformed organisation",
			method:   http.MethodPost,
			path:     "/api/organisations/abc/users",
			body:     `{"userId":"` + john.userID + `"}`,
			wantBody: `{"status":"Bad Request","message":"organization not found","statusCode":404}`,
		},
		{
			name:     "add malformed user",
			method:   http.MethodPost,
			path:     "/api/organisations/" + orgID + "/users",
			body:     `{"userId":"abc"}`,
			wantBody: `{"status":"Bad Request","message":"user not found","statusCode":404}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body, jane.token)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestCookieExpiryUsesResolvedTTL(t *testing.T) {
	ts := newTestServerWith(t, func(cfg *config.Config) { cfg.TokenTTL = 0 }, nil)

	rec := ts.do(t, http.MethodPost, "/auth/register",
		`{"first_name":"Jane","last_name":"Doe","email":"jane@example.com","password":"s3cret","phone":"0123456789"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.WithinDuration(t, time.Now().Add(authusecase.DefaultTokenTTL), cookies[0].Expires, 5*time.Second)
}

// countingTokens records how often the server verifies a token.
type countingTokens struct {
	authusecase.TokenManager
	verifies atomic.Int32
}

func (c *countingTokens) Verify(token string) authusecase.Result {
	c.verifies.Add(1)
	return c.TokenManager.Verify(token)
}

func TestGuardedRouteVerifiesOnce(t *testing.T) {
	counter := &countingTokens{}
	ts := newTestServerWith(t, nil, func(tokens authusecase.TokenManager) authusecase.TokenManager {
		counter.TokenManager = tokens
		return counter
	})
	jane := ts.register(t, "Jane", "jane@example.com")
	counter.verifies.Store(0)

	rec := ts.do(t, http.MethodGet, "/api/organisations", "", jane.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int32(1), counter.verifies.Load())

	gate := ts.metrics.AuthResults.WithLabelValues("gate", "authenticated", "none")
	assert.Equal(t, float64(0), testutil.ToFloat64(gate))
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "accounts_auth_results_total")
	assert.Contains(t, rec.Body.String(), "accounts_http_requests_total")
}

func TestCORS(t *testing.T) {
	handler := withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	r.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_WildcardWithoutCredentials(t *testing.T) {
	handler := withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), []string{"*"})

	r := httptest.NewRequest(http.MethodGet, "/api/organisations", nil)
	r.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_ListedOriginAlongsideWildcard(t *testing.T) {
	handler := withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), []string{"*", "https://app.example.com"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://APP.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, "https://APP.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://other.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}
