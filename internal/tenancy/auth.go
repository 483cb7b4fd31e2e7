package tenancy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vetdesk/vetdesk/internal/platform/httpx"
	"github.com/vetdesk/vetdesk/internal/shared"
)

// TenantHeader lets platform administrators choose the tenant they act on.
const TenantHeader = "X-Tenant-ID"

// Claims are issued by the upstream identity service.
type Claims struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
	logger *slog.Logger
}

// NewAuthenticator constructs an Authenticator. An empty issuer skips the iss check.
func NewAuthenticator(secret, issuer string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, logger: logger}
}

var (
	errMissingToken   = fmt.Errorf("%w: missing bearer token", httpx.ErrUnauthorized)
	errInvalidToken   = fmt.Errorf("%w: invalid token", httpx.ErrUnauthorized)
	errTenantMismatch = fmt.Errorf("%w: token is not valid for the requested tenant", httpx.ErrForbidden)
)

// Verify parses the raw token and resolves the identity for the request.
// requestedTenant is the X-Tenant-ID header value, honoured only for platform admins.
func (a *Authenticator) Verify(raw, requestedTenant string) (shared.Identity, error) {
	if raw == "" {
		return shared.Identity{}, errMissingToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return shared.Identity{}, errInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return shared.Identity{}, errInvalidToken
	}
	id := shared.Identity{UserID: claims.UserID, Name: claims.Name, Role: claims.Role}

	requestedTenant = strings.TrimSpace(requestedTenant)
	if claims.Role == shared.RolePlatformAdmin && requestedTenant != "" {
		tenantID, err := uuid.Parse(requestedTenant)
		if err != nil {
			return shared.Identity{}, httpx.NewValidationError(TenantHeader, "must be a valid uuid")
		}
		id.TenantID = tenantID
		return id, nil
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil || tenantID == uuid.Nil {
		return shared.Identity{}, ErrTenantRequired
	}
	if requestedTenant != "" && requestedTenant != tenantID.String() {
		return shared.Identity{}, errTenantMismatch
	}
	id.TenantID = tenantID
	return id, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw := ""
		if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "bearer ") {
			raw = strings.TrimSpace(header[len("Bearer "):])
		}
		id, err := a.Verify(raw, r.Header.Get(TenantHeader))
		if err != nil {
			a.logger.Warn("reject request", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
	})
}

// TenantFromContext returns the tenant of the verified caller.
func TenantFromContext(ctx context.Context) (uuid.UUID, error) {
	id, ok := shared.IdentityFromContext(ctx)
	if !ok || id.TenantID == uuid.Nil {
		return uuid.Nil, ErrTenantRequired
	}
	return id.TenantID, nil
}
