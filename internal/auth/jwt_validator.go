package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken covers every verification failure so handlers can map it
// to a single 401 without leaking detail.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the subset of token claims the terminal cares about.
type Claims struct {
	CashierID string
	StoreID   string
}

// Verifier validates bearer tokens issued by the merchant identity provider.
// Keys are fetched from the JWKS endpoint and cached; tests can install a
// static keyset instead.
type Verifier struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration

	jwksURL string
	cache   *jwk.Cache
	static  jwk.Set
}

// NewVerifier builds a verifier backed by an auto-refreshing JWKS cache.
func NewVerifier(ctx context.Context, jwksURL, issuer, audience string, skew time.Duration) (*Verifier, error) {
	v := &Verifier{
		Issuer:    issuer,
		Audience:  audience,
		ClockSkew: skew,
		jwksURL:   jwksURL,
	}
	if jwksURL != "" {
		cache := jwk.NewCache(ctx)
		if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(5*time.Minute)); err != nil {
			return nil, fmt.Errorf("register jwks: %w", err)
		}
		v.cache = cache
	}
	return v, nil
}

// NewStaticVerifier uses a fixed keyset, for tests and offline setups.
func NewStaticVerifier(keys jwk.Set, issuer, audience string, skew time.Duration) *Verifier {
	return &Verifier{Issuer: issuer, Audience: audience, ClockSkew: skew, static: keys}
}

func (v *Verifier) keySet(ctx context.Context) (jwk.Set, error) {
	if v.static != nil {
		return v.static, nil
	}
	if v.cache == nil {
		return nil, fmt.Errorf("verifier has no key source")
	}
	set, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	return set, nil
}

// Verify parses and validates the token, returning the cashier claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (Claims, error) {
	set, err := v.keySet(ctx)
	if err != nil {
		return Claims{}, err
	}
	opts := []jwt.ParseOption{
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.ClockSkew),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	tok, err := jwt.ParseString(raw, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := Claims{CashierID: tok.Subject()}
	if v, ok := tok.Get("store_id"); ok {
		if s, ok := v.(string); ok {
			claims.StoreID = s
		}
	}
	if strings.TrimSpace(claims.CashierID) == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
