package helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// CustomClaims is the subset of identity-provider claims the API relies on.
type CustomClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks a bearer token and returns the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*CustomClaims, error)
}

var defaultValidMethods = []string{"RS256", "ES256"}

// JWKSVerifier validates provider-signed JWTs against a remote key set that
// refreshes in the background.
type JWKSVerifier struct {
	jwks    *keyfunc.JWKS
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
}

func NewJWKSVerifier(ctx context.Context, jwksURL, issuer, audience string) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching jwks: %w", err)
	}
	v := newJWTVerifier(jwks.Keyfunc, issuer, audience, defaultValidMethods)
	v.jwks = jwks
	return v, nil
}

func newJWTVerifier(keyFunc jwt.Keyfunc, issuer, audience string, methods []string) *JWKSVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWKSVerifier{keyFunc: keyFunc, parser: jwt.NewParser(opts...)}
}

func (v *JWKSVerifier) Verify(_ context.Context, tokenStr string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, v.keyFunc)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims.Email = strings.ToLower(strings.TrimSpace(claims.Email))
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: email claim missing", ErrInvalidToken)
	}
	return claims, nil
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// SupabaseVerifier asks the Supabase auth server who owns the token.
type SupabaseVerifier struct {
	client *supabase.Client
}

func NewSupabaseVerifier(client *supabase.Client) *SupabaseVerifier {
	return &SupabaseVerifier{client: client}
}

func (v *SupabaseVerifier) Verify(_ context.Context, tokenStr string) (*CustomClaims, error) {
	user, err := v.client.Auth.WithToken(tokenStr).GetUser()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claimsFromUser(user)
}

func claimsFromUser(user *types.UserResponse) (*CustomClaims, error) {
	if user == nil {
		return nil, ErrInvalidToken
	}
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: email claim missing", ErrInvalidToken)
	}
	claims := &CustomClaims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID.String()},
	}
	if name, ok := user.UserMetadata["full_name"].(string); ok {
		claims.Name = name
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
