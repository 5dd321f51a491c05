package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seacatering/subscription-service/internal/app"
	"github.com/seacatering/subscription-service/internal/clock"
	"github.com/seacatering/subscription-service/internal/domain"
	"github.com/seacatering/subscription-service/internal/security"
	"github.com/seacatering/subscription-service/internal/store"
)

const testSecret = "test-jwt-secret"

type testServer struct {
	handler http.Handler
	clock   *clock.Fake
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := store.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = store.MigrateSQLite(ctx, db)
	require.NoError(t, err)
	repo := store.NewSQLiteRepository(db)

	clk := clock.NewFake(time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC))
	limiter := security.NewAttemptLimiter(security.NewMemoryAttemptStore(), clk, security.DefaultMaxAttempts, security.DefaultWindow, nil)
	csrf := security.NewCSRFManager(security.NewMemoryTokenStore(), security.DefaultCSRFTokenTTL)
	loc := time.FixedZone("WIB", 7*60*60)

	subs := app.NewSubscriptionService(repo, nil, limiter, clk, loc, nil)
	testimonials := app.NewTestimonialService(repo, nil, clk, nil)
	h := NewHandler(subs, testimonials, nil, csrf, limiter.Window(), nil)
	auth := NewAuthenticator(testSecret, "", nil)

	return &testServer{handler: NewRouter(h, auth, []string{"https://*"}), clock: clk}
}

func tokenFor(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":          userID,
		"email":        userID + "@example.com",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"app_metadata": map[string]interface{}{"role": string(role)},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token, csrf string, body interface{}) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set(CSRFHeader, csrf)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func (s *testServer) csrfToken(t *testing.T, token string) string {
	t.Helper()
	rec, resp := s.do(t, http.MethodGet, "/csrf-token", token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	require.Len(t, out["csrf_token"], security.CSRFTokenLength)
	return out["csrf_token"]
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"name":          "Budi Santoso",
		"phone":         "081234567890",
		"plan":          "protein",
		"meal_types":    []string{"breakfast", "lunch", "dinner"},
		"delivery_days": []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
	}
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestPublicCatalogAndQuote(t *testing.T) {
	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodGet, "/plans", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var catalog catalogResponse
	require.NoError(t, json.Unmarshal(resp.Data, &catalog))
	assert.Len(t, catalog.Plans, 3)
	assert.Equal(t, "Rp 30.000", catalog.Plans[0].FormattedPrice)

	rec, resp = s.do(t, http.MethodPost, "/quote", "", "", map[string]interface{}{
		"plan":          "protein",
		"meal_types":    []string{"breakfast", "lunch", "dinner"},
		"delivery_days": []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var quote domain.Quote
	require.NoError(t, json.Unmarshal(resp.Data, &quote))
	assert.Equal(t, int64(2580000), quote.TotalPrice)
	assert.Equal(t, "Rp 2.580.000", quote.FormattedPrice)
	assert.True(t, quote.Complete)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: func() string {
			signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix(),
			}).SignedString([]byte("other"))
			return signed
		}()},
		{name: "expired", token: func() string {
			signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix(),
			}).SignedString([]byte(testSecret))
			return signed
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := s.do(t, http.MethodGet, "/subscriptions", tt.token, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			require.NotNil(t, resp.Error)
			assert.False(t, resp.Success)
			assert.Equal(t, "authentication_error", resp.Error.Code)
		})
	}
}

func TestCreateRequiresCSRFToken(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, "user-1", domain.RoleUser)

	rec, resp := s.do(t, http.MethodPost, "/subscriptions", token, "", createBody())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "300", rec.Header().Get("Retry-After"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, security.RejectedMessage, resp.Error.Message)

	rec, _ = s.do(t, http.MethodPost, "/subscriptions", token, strings.Repeat("a", security.CSRFTokenLength), createBody())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSubscriptionFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := tokenFor(t, "user-1", domain.RoleUser)
	csrf := s.csrfToken(t, token)

	// a rejected submission keeps the token valid
	bad := createBody()
	bad["phone"] = "12345"
	rec, resp := s.do(t, http.MethodPost, "/subscriptions", token, csrf, bad)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error.Details, "phone")
	assert.Empty(t, rec.Header().Get(CSRFHeader))

	rec, resp = s.do(t, http.MethodPost, "/subscriptions", token, csrf, createBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(resp.Data, &sub))
	assert.Equal(t, int64(2580000), sub.TotalPrice)
	assert.Equal(t, domain.StatusActive, sub.Status)

	rotated := rec.Header().Get(CSRFHeader)
	require.Len(t, rotated, security.CSRFTokenLength)
	assert.NotEqual(t, csrf, rotated)

	// the spent token no longer works
	rec, _ = s.do(t, http.MethodPost, "/subscriptions/"+sub.ID.String()+"/cancel", token, csrf, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, resp = s.do(t, http.MethodPost, "/subscriptions/"+sub.ID.String()+"/pause", token, rotated, map[string]string{
		"start_date": "2026-03-11",
		"end_date":   "2026-03-18",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &sub))
	assert.Equal(t, domain.StatusPaused, sub.Status)
	rotated = rec.Header().Get(CSRFHeader)

	rec, resp = s.do(t, http.MethodPost, "/subscriptions/"+sub.ID.String()+"/reactivate", token, rotated, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", resp.Error.Code)

	rec, resp = s.do(t, http.MethodPatch, "/subscriptions/"+sub.ID.String()+"/status", token, rotated, map[string]string{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &sub))
	assert.Equal(t, domain.StatusActive, sub.Status)
	assert.Nil(t, sub.PauseStart)

	rec, resp = s.do(t, http.MethodGet, "/subscriptions", token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Subscription
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].Version)

	other := tokenFor(t, "user-2", domain.RoleUser)
	rec, resp = s.do(t, http.MethodGet, "/subscriptions/"+sub.ID.String(), other, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "permission_denied", resp.Error.Code)

	rec, _ = s.do(t, http.MethodGet, "/subscriptions/not-a-uuid", token, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	user := tokenFor(t, "user-1", domain.RoleUser)
	admin := tokenFor(t, "admin-1", domain.RoleAdmin)

	csrf := s.csrfToken(t, user)
	rec, _ := s.do(t, http.MethodPost, "/subscriptions", user, csrf, createBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/admin/metrics", user, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := s.do(t, http.MethodGet, "/admin/metrics?start=2026-03-01&end=2026-03-31", admin, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m struct {
		NewSubscriptions        int   `json:"new_subscriptions"`
		TotalActive             int   `json:"total_active"`
		MonthlyRecurringRevenue int64 `json:"monthly_recurring_revenue"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &m))
	assert.Equal(t, 1, m.NewSubscriptions)
	assert.Equal(t, 1, m.TotalActive)
	assert.Equal(t, int64(2580000), m.MonthlyRecurringRevenue)

	rec, resp = s.do(t, http.MethodGet, "/admin/metrics?start=2026-03-31&end=2026-03-01", admin, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error.Details, "end")

	req := httptest.NewRequest(http.MethodGet, "/admin/metrics.csv?start=2026-03-01&end=2026-03-31", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	csvRec := httptest.NewRecorder()
	s.handler.ServeHTTP(csvRec, req)
	require.Equal(t, http.StatusOK, csvRec.Code)
	assert.Equal(t, `attachment; filename="sea-catering-metrics-2026-03-01-to-2026-03-31.csv"`, csvRec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(csvRec.Body.String(), "Metric,Value\n"))
	assert.Contains(t, csvRec.Body.String(), "Monthly Recurring Revenue,2580000")
}

func TestTestimonialModerationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	user := tokenFor(t, "user-1", domain.RoleUser)
	admin := tokenFor(t, "admin-1", domain.RoleAdmin)

	csrf := s.csrfToken(t, user)
	rec, resp := s.do(t, http.MethodPost, "/testimonials", user, csrf, map[string]interface{}{
		"name":    "Sari",
		"message": "Fresh food delivered right on time.",
		"rating":  5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var submitted domain.Testimonial
	require.NoError(t, json.Unmarshal(resp.Data, &submitted))

	rec, resp = s.do(t, http.MethodGet, "/testimonials", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	adminCSRF := s.csrfToken(t, admin)
	rec, _ = s.do(t, http.MethodPost, "/admin/testimonials/"+submitted.ID.String()+"/approve", admin, adminCSRF, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = s.do(t, http.MethodGet, "/testimonials", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var public []domain.Testimonial
	require.NoError(t, json.Unmarshal(resp.Data, &public))
	require.Len(t, public, 1)
	assert.Equal(t, "Indonesia", public[0].Location)
}

func TestAuthenticatorJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	hits := 0
	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kid": "key-1",
				"kty": "RSA",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	defer jwks.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":          "user-rsa",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"app_metadata": map[string]interface{}{"role": "admin"},
	})
	token.Header["kid"] = "key-1"
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	a := NewAuthenticator("", jwks.URL, nil)
	caller, err := a.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-rsa", caller.UserID)
	assert.Equal(t, domain.RoleAdmin, caller.Role)

	_, err = a.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)

	// HMAC tokens are refused when no secret is configured
	hmac, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte("guess"))
	require.NoError(t, err)
	_, err = a.Verify(context.Background(), hmac)
	assert.Error(t, err)

	// an unknown kid is looked up once, then refused from cache
	forged := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()})
	forged.Header["kid"] = "rotated-away"
	forgedSigned, err := forged.SignedString(key)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = a.Verify(context.Background(), forgedSigned)
		assert.Error(t, err)
	}
	assert.Equal(t, 2, hits)
}

func TestUserMetadataRoleDoesNotGrantAdmin(t *testing.T) {
	s := newTestServer(t)
	claims := jwt.MapClaims{
		"sub":           "mallory",
		"exp":           time.Now().Add(time.Hour).Unix(),
		"app_metadata":  map[string]interface{}{"provider": "email"},
		"user_metadata": map[string]interface{}{"role": "admin"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec, _ := s.do(t, http.MethodGet, "/admin/metrics", token, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/admin/testimonials", token, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoleFromClaims(t *testing.T) {
	tests := []struct {
		name              string
		claims            jwt.MapClaims
		trustUserMetadata bool
		want              domain.Role
	}{
		{
			name:   "app metadata admin",
			claims: jwt.MapClaims{"app_metadata": map[string]interface{}{"role": "admin"}},
			want:   domain.RoleAdmin,
		},
		{
			name:   "user metadata ignored by default",
			claims: jwt.MapClaims{"user_metadata": map[string]interface{}{"role": "admin"}},
			want:   domain.RoleUser,
		},
		{
			name:              "user metadata trusted when enabled",
			claims:            jwt.MapClaims{"user_metadata": map[string]interface{}{"role": "admin"}},
			trustUserMetadata: true,
			want:              domain.RoleAdmin,
		},
		{
			name: "app metadata wins over user metadata",
			claims: jwt.MapClaims{
				"app_metadata":  map[string]interface{}{"role": "user"},
				"user_metadata": map[string]interface{}{"role": "admin"},
			},
			trustUserMetadata: true,
			want:              domain.RoleUser,
		},
		{
			name:   "no metadata",
			claims: jwt.MapClaims{},
			want:   domain.RoleUser,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roleFromClaims(tt.claims, tt.trustUserMetadata); got != tt.want {
				t.Fatalf("expected role %q, got %q", tt.want, got)
			}
		})
	}
}
