package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mw "github.com/txdxai/sophia/internal/api/middleware"
	"github.com/txdxai/sophia/internal/backend"
	"github.com/txdxai/sophia/internal/backend/mock"
	"github.com/txdxai/sophia/internal/cache"
	"github.com/txdxai/sophia/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock Cache ---

type mockCache struct {
	mu      sync.Mutex
	counter int64
	err     error
	data    map[string][]byte
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = value
	return nil
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Delete(_ context.Context, _ string) error              { return nil }
func (m *mockCache) DeletePrefix(_ context.Context, _ string) (int, error) { return 0, nil }
func (m *mockCache) Ping(_ context.Context) error                          { return nil }
func (m *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return m.counter, m.err
}

// --- helpers ---

const testKey = "sk-agent-0123456789abcdef"

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

func authedRequest(companyID, key string) *http.Request {
	req := httptest.NewRequest("GET", "/test", nil)
	if companyID != "" {
		req.Header.Set(mw.CompanyHeader, companyID)
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	return req
}

// ========================================
// Auth Middleware Tests
// ========================================

func TestAuth_MissingCompanyHeader(t *testing.T) {
	auth := mw.NewAuth(&mock.Client{}, nil)
	handler := auth.Authenticate(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("", testKey))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errBody(t, w)["code"])
}

func TestAuth_InvalidCompanyHeader(t *testing.T) {
	auth := mw.NewAuth(&mock.Client{}, nil)
	handler := auth.Authenticate(okHandler())

	for _, id := range []string{"abc", "0", "-3"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(id, testKey))
		assert.Equal(t, http.StatusBadRequest, w.Code, id)
	}
}

func TestAuth_MissingAuthHeader(t *testing.T) {
	auth := mw.NewAuth(&mock.Client{}, nil)
	handler := auth.Authenticate(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("7", ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestAuth_InvalidBearerFormat(t *testing.T) {
	auth := mw.NewAuth(&mock.Client{}, nil)
	handler := auth.Authenticate(okHandler())

	req := authedRequest("7", "")
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_RejectedKey(t *testing.T) {
	client := &mock.Client{
		AuthenticateFunc: func(context.Context, int64, string) (backend.AuthResult, error) {
			return backend.AuthResult{}, backend.ErrUnauthorized
		},
	}
	handler := mw.NewAuth(client, nil).Authenticate(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("7", testKey))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestAuth_BackendDown(t *testing.T) {
	client := &mock.Client{
		AuthenticateFunc: func(context.Context, int64, string) (backend.AuthResult, error) {
			return backend.AuthResult{}, backend.ErrBackendUnreachable
		},
	}
	handler := mw.NewAuth(client, nil).Authenticate(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("7", testKey))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestAuth_ValidKey(t *testing.T) {
	client := &mock.Client{}
	auth := mw.NewAuth(client, nil)

	var gotCompany int64
	var gotOK bool
	var gotAuth models.AuthContext
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCompany, gotOK = mw.GetCompanyID(r)
		gotAuth = mw.GetAuth(r)
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	auth.Authenticate(inner).ServeHTTP(w, authedRequest("7", testKey))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gotOK)
	assert.Equal(t, int64(7), gotCompany)
	assert.Equal(t, "token-"+testKey, gotAuth.AccessToken)
	assert.Equal(t, "instance-7", gotAuth.AgentInstanceID)
}

func TestAuth_CachesExchange(t *testing.T) {
	var calls int
	client := &mock.Client{
		AuthenticateFunc: func(_ context.Context, companyID int64, key string) (backend.AuthResult, error) {
			calls++
			return backend.AuthResult{AccessToken: "tok", AgentInstanceID: "inst"}, nil
		},
	}
	ac := cache.NewAuthCache(&mockCache{}, time.Minute, bcrypt.MinCost)
	handler := mw.NewAuth(client, ac).Authenticate(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("7", testKey))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 1, calls)

	// A different key sharing the prefix is exchanged again.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("7", testKey[:8]+"ffffffff"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, calls)
}

// ========================================
// Rate Limit Middleware Tests
// ========================================

func withCompany(req *http.Request, id int64) *http.Request {
	return req.WithContext(mw.SetCompanyID(req.Context(), id))
}

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	mc := &mockCache{counter: 0}
	rl := mw.NewRateLimit(mc, 60)

	handler := rl.Limit(okHandler())

	req := withCompany(httptest.NewRequest("GET", "/test", nil), 7)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	mc := &mockCache{counter: 60} // next IncrWithExpiry will return 61
	rl := mw.NewRateLimit(mc, 60)

	handler := rl.Limit(okHandler())

	req := withCompany(httptest.NewRequest("GET", "/test", nil), 7)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errBody(t, w)["code"])
}

func TestRateLimit_FailOpen(t *testing.T) {
	mc := &mockCache{counter: 500, err: errors.New("redis down")}
	rl := mw.NewRateLimit(mc, 60)

	req := withCompany(httptest.NewRequest("GET", "/test", nil), 7)
	w := httptest.NewRecorder()
	rl.Limit(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_NoCompany_PassThrough(t *testing.T) {
	mc := &mockCache{}
	rl := mw.NewRateLimit(mc, 60)

	handler := rl.Limit(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), mc.counter)
}

// ========================================
// CORS Middleware Tests
// ========================================

func TestCORS_AllowAll(t *testing.T) {
	handler := mw.CORS([]string{"*"})(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), mw.CompanyHeader))
}

func TestCORS_ListedOrigin(t *testing.T) {
	handler := mw.CORS([]string{"https://app.example.com"})(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	handler := mw.CORS([]string{"*"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

// ========================================
// Recovery Middleware Tests
// ========================================

func TestRecovery_CatchesPanic(t *testing.T) {
	panicking := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("something went wrong")
	})

	handler := mw.Recovery(panicking)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	aborting := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic(http.ErrAbortHandler)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(mw.CompanyHeader, "7")
	w := httptest.NewRecorder()

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		mw.Recovery(aborting).ServeHTTP(w, req)
	})
}

func TestRecovery_NoPanic(t *testing.T) {
	handler := mw.Recovery(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// Logging Middleware Tests
// ========================================

func TestLogger_SetsStatus(t *testing.T) {
	handler := mw.Logger(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(mw.CompanyHeader, "7")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
