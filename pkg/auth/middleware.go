package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
)

// Authentication methods recorded on an Identity.
const (
	MethodJWT    = "jwt"
	MethodAPIKey = "apikey"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Email  string
	Role   string
	Method string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// GetUserID extracts user ID from request context
func GetUserID(r *http.Request) (string, bool) {
	id, ok := FromContext(r.Context())
	if !ok || id.UserID == "" {
		return "", false
	}
	return id.UserID, true
}

// GetUserRole extracts user role from request context
func GetUserRole(r *http.Request) (string, bool) {
	id, ok := FromContext(r.Context())
	if !ok || id.Role == "" {
		return "", false
	}
	return id.Role, true
}

// AuthMiddleware accepts a JWT bearer token or an X-API-Key header. A
// credential that is present but invalid is always rejected; optional only
// lets requests without credentials through.
type AuthMiddleware struct {
	jwtManager    *JWTManager
	apiKeyManager *APIKeyManager
	optional      bool
	logger        *slog.Logger
}

// NewAuthMiddleware creates a new authentication middleware. Either
// manager may be nil to disable that method.
func NewAuthMiddleware(jwtManager *JWTManager, apiKeyManager *APIKeyManager, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:    jwtManager,
		apiKeyManager: apiKeyManager,
		optional:      optional,
		logger:        slog.New(slog.DiscardHandler),
	}
}

// WithLogger sets where rejected credentials are logged.
func (m *AuthMiddleware) WithLogger(l *slog.Logger) *AuthMiddleware {
	m.logger = l
	return m
}

// Handler returns the HTTP middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.authenticate(r)
		switch {
		case err != nil:
			m.logger.Debug("authentication rejected", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		case id != nil:
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
		case m.optional:
			next.ServeHTTP(w, r)
		default:
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no valid authentication provided")
		}
	})
}

// authenticate returns nil, nil when the request carries no credential.
func (m *AuthMiddleware) authenticate(r *http.Request) (*Identity, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || m.jwtManager == nil {
			return nil, errUnsupportedScheme
		}
		claims, err := m.jwtManager.Verify(strings.TrimSpace(token))
		if err != nil {
			return nil, errInvalidToken
		}
		return &Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role, Method: MethodJWT}, nil
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		if m.apiKeyManager == nil {
			return nil, errInvalidAPIKey
		}
		apiKey, err := m.apiKeyManager.Verify(key)
		if err != nil {
			return nil, errInvalidAPIKey
		}
		return &Identity{UserID: apiKey.UserID, Role: apiKey.Role, Method: MethodAPIKey}, nil
	}

	return nil, nil
}

type authError string

func (e authError) Error() string { return string(e) }

const (
	errUnsupportedScheme = authError("unsupported authorization scheme")
	errInvalidToken      = authError("invalid or expired token")
	errInvalidAPIKey     = authError("invalid or expired API key")
)

// RequireRole rejects requests whose identity has none of roles. Admins
// pass every check.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r)
			if !ok || (role != RoleAdmin && !slices.Contains(roles, role)) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
