/**
 * @description
 * This file contains custom middleware for the HTTP router: bearer-token
 * authentication, admin gating and anti-forgery token checks. The verified
 * caller is stored in the request context for handlers to read.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: token parsing and signature checks.
 * - github.com/hashicorp/go-retryablehttp: JWKS fetches with retries.
 * - github.com/patrickmn/go-cache: JWKS key cache.
 */

package api

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-retryablehttp"
	goCache "github.com/patrickmn/go-cache"

	"github.com/seacatering/subscription-service/internal/domain"
	ierr "github.com/seacatering/subscription-service/internal/errors"
)

// CallerContextKey is a custom type for the context key to avoid collisions.
type CallerContextKey string

const callerKey CallerContextKey = "caller"

// CSRFHeader carries the anti-forgery token on requests and its replacement on responses.
const CSRFHeader = "X-CSRF-Token"

const jwksCacheTTL = 15 * time.Minute

const unknownKidTTL = time.Minute

// Authenticator verifies bearer tokens. HS256 tokens are checked against the
// shared secret; RS256 tokens against the key set published at jwksURL.
type Authenticator struct {
	// TrustUserMetadataRole also reads the role from user_metadata, which
	// users can edit themselves. Leave it off unless roles are only ever
	// written there by a trusted backend.
	TrustUserMetadataRole bool

	secret      []byte
	jwksURL     string
	keys        *goCache.Cache
	unknownKids *goCache.Cache
	client      *retryablehttp.Client
	logger      *slog.Logger
}

func NewAuthenticator(secret, jwksURL string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = logger.With("component", "jwks_client")

	return &Authenticator{
		secret:      []byte(secret),
		jwksURL:     jwksURL,
		keys:        goCache.New(jwksCacheTTL, 2*jwksCacheTTL),
		unknownKids: goCache.New(unknownKidTTL, 2*unknownKidTTL),
		client:      client,
		logger:      logger,
	}
}

// Verify parses tokenString and returns the caller it identifies.
func (a *Authenticator) Verify(ctx context.Context, tokenString string) (domain.Caller, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if len(a.secret) == 0 {
				return nil, fmt.Errorf("HMAC tokens are not accepted")
			}
			return a.secret, nil
		case *jwt.SigningMethodRSA:
			if a.jwksURL == "" {
				return nil, fmt.Errorf("RSA tokens are not accepted")
			}
			kid, ok := token.Header["kid"].(string)
			if !ok {
				return nil, fmt.Errorf("kid not found in token header")
			}
			return a.publicKey(ctx, kid)
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	}, jwt.WithExpirationRequired())
	if err != nil {
		return domain.Caller{}, unauthenticated(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return domain.Caller{}, unauthenticated(fmt.Errorf("invalid token claims"))
	}
	userID, _ := claims["sub"].(string)
	if userID == "" {
		return domain.Caller{}, unauthenticated(fmt.Errorf("subject not found in token"))
	}
	email, _ := claims["email"].(string)

	return domain.Caller{UserID: userID, Email: email, Role: roleFromClaims(claims, a.TrustUserMetadataRole)}, nil
}

// roleFromClaims reads app_metadata.role, which only the auth server can
// write, and falls back to user_metadata.role when trustUserMetadata is set.
func roleFromClaims(claims jwt.MapClaims, trustUserMetadata bool) domain.Role {
	keys := []string{"app_metadata"}
	if trustUserMetadata {
		keys = append(keys, "user_metadata")
	}
	for _, key := range keys {
		meta, ok := claims[key].(map[string]interface{})
		if !ok {
			continue
		}
		if role, ok := meta["role"].(string); ok && role != "" {
			if domain.Role(role) == domain.RoleAdmin {
				return domain.RoleAdmin
			}
			return domain.RoleUser
		}
	}
	return domain.RoleUser
}

// Authenticate rejects requests without a valid bearer token.
func (h *Handler) Authenticate(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || tokenString == authHeader {
				h.respondWithError(w, r, unauthenticated(fmt.Errorf("missing bearer token")))
				return
			}

			caller, err := a.Verify(r.Context(), tokenString)
			if err != nil {
				h.respondWithError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// RequireAdmin lets only admin callers through.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CallerFrom(r.Context()).IsAdmin() {
			h.respondWithError(w, r, ierr.NewError("admin role required").
				WithHint("You do not have permission to perform this action.").
				Mark(ierr.ErrPermissionDenied))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCSRF checks the caller's anti-forgery token and, once the wrapped
// handler succeeds, rotates it and returns the replacement in the CSRF header.
func (h *Handler) RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := CallerFrom(r.Context()).UserID
		if err := h.csrf.Validate(r.Context(), session, r.Header.Get(CSRFHeader)); err != nil {
			h.logger.Warn("csrf token rejected", "user_id", session, "path", r.URL.Path)
			h.respondWithError(w, r, err)
			return
		}
		next.ServeHTTP(&rotatingWriter{ResponseWriter: w, rotate: func() {
			token, err := h.csrf.Rotate(r.Context(), session)
			if err != nil {
				h.logger.Error("csrf rotation failed", "user_id", session, "error", err)
				return
			}
			w.Header().Set(CSRFHeader, token)
		}}, r)
	})
}

// rotatingWriter runs rotate just before a successful status is written.
type rotatingWriter struct {
	http.ResponseWriter
	rotate      func()
	wroteHeader bool
}

func (rw *rotatingWriter) WriteHeader(status int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	if status < http.StatusBadRequest {
		rw.rotate()
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *rotatingWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// WithCaller stores the verified caller in ctx.
func WithCaller(ctx context.Context, caller domain.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFrom returns the caller stored by the auth middleware, or an
// anonymous caller.
func CallerFrom(ctx context.Context) domain.Caller {
	caller, _ := ctx.Value(callerKey).(domain.Caller)
	return caller
}

func unauthenticated(err error) error {
	return ierr.WithError(err).
		WithHint("Please sign in to continue.").
		Mark(ierr.ErrAuthentication)
}

type jsonWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// publicKey returns the RSA key for kid, refetching the key set on a cache
// miss. A kid missing from a fresh key set is remembered for a minute so
// tokens carrying it do not trigger another fetch.
func (a *Authenticator) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if v, ok := a.keys.Get(kid); ok {
		return v.(*rsa.PublicKey), nil
	}
	if _, ok := a.unknownKids.Get(kid); ok {
		return nil, fmt.Errorf("key with kid %s not found", kid)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, a.jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, err
	}

	var found *rsa.PublicKey
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			a.logger.Warn("skipping malformed JWKS key", "kid", key.Kid, "error", err)
			continue
		}
		a.keys.SetDefault(key.Kid, pub)
		if key.Kid == kid {
			found = pub
		}
	}
	if found == nil {
		a.unknownKids.SetDefault(kid, struct{}{})
		return nil, fmt.Errorf("key with kid %s not found", kid)
	}
	return found, nil
}

// parseRSAPublicKey parses an RSA public key from base64url modulus and exponent.
func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	if len(eb) == 0 || len(eb) > 4 {
		return nil, fmt.Errorf("invalid exponent length %d", len(eb))
	}

	var exp int
	for _, b := range eb {
		exp = exp<<8 | int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: exp}, nil
}
