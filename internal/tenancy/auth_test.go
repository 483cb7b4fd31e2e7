package tenancy

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestVerifyResolvesTenantFromClaims(t *testing.T) {
	auth := NewAuthenticator(testSecret, "vetdesk-id", nil)
	tenant := uuid.New()
	raw := signToken(t, jwt.SigningMethodHS256, Claims{
		TenantID:         tenant.String(),
		UserID:           "u-1",
		Name:             "Dr. Kim",
		Role:             "vet",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "vetdesk-id"},
	})

	id, err := auth.Verify(raw, "")
	require.NoError(t, err)
	require.Equal(t, tenant, id.TenantID)
	require.Equal(t, "Dr. Kim", id.Actor())
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	auth := NewAuthenticator(testSecret, "", nil)
	tenant := uuid.New().String()

	_, err := auth.Verify("", "")
	require.ErrorIs(t, err, httpx.ErrUnauthorized)

	expired := signToken(t, jwt.SigningMethodHS256, Claims{
		TenantID: tenant, UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	_, err = auth.Verify(expired, "")
	require.ErrorIs(t, err, httpx.ErrUnauthorized)

	wrongAlg := signToken(t, jwt.SigningMethodHS512, Claims{TenantID: tenant, UserID: "u-1"})
	_, err = auth.Verify(wrongAlg, "")
	require.ErrorIs(t, err, httpx.ErrUnauthorized)

	noTenant := signToken(t, jwt.SigningMethodHS256, Claims{UserID: "u-1"})
	_, err = auth.Verify(noTenant, "")
	require.ErrorIs(t, err, ErrTenantRequired)
}

func TestVerifyTenantHeader(t *testing.T) {
	auth := NewAuthenticator(testSecret, "", nil)
	own := uuid.New()
	other := uuid.New()

	staff := signToken(t, jwt.SigningMethodHS256, Claims{TenantID: own.String(), UserID: "u-1", Role: "reception"})
	_, err := auth.Verify(staff, other.String())
	require.ErrorIs(t, err, httpx.ErrForbidden)

	id, err := auth.Verify(staff, own.String())
	require.NoError(t, err)
	require.Equal(t, own, id.TenantID)

	admin := signToken(t, jwt.SigningMethodHS256, Claims{UserID: "root", Role: shared.RolePlatformAdmin})
	id, err = auth.Verify(admin, other.String())
	require.NoError(t, err)
	require.Equal(t, other, id.TenantID)
}

func TestMiddlewareStoresIdentity(t *testing.T) {
	auth := NewAuthenticator(testSecret, "", nil)
	tenant := uuid.New()
	raw := signToken(t, jwt.SigningMethodHS256, Claims{TenantID: tenant.String(), UserID: "u-1"})

	var seen uuid.UUID
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := TenantFromContext(r.Context())
		require.NoError(t, err)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sales", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, tenant, seen)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
