package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/b3datalake/datalake-api/internal/config"
)

// ErrNoSecret is returned when an Issuer is built without a signing secret.
var ErrNoSecret = errors.New("token signing secret is not configured")

// Issuer creates and verifies HMAC-signed access tokens carrying a subject
// and an expiry. Tokens are stateless: nothing is persisted and nothing is
// revoked before exp.
type Issuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an Issuer for the given secret, algorithm name (HS256,
// HS384, HS512) and default ttl.
func NewIssuer(secret, algorithm string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	return &Issuer{secret: []byte(secret), method: method, ttl: ttl, now: time.Now}, nil
}

// NewIssuerFromConfig wires an Issuer from the JWT section of the config.
func NewIssuerFromConfig(cfg *config.Config) (*Issuer, error) {
	return NewIssuer(cfg.JWT.Secret, cfg.JWT.Algorithm, cfg.JWT.AccessTokenTTL)
}

// TTL returns the default lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// CreateToken signs a token for subject using the default ttl.
func (i *Issuer) CreateToken(subject string) (string, error) {
	return i.CreateTokenWithTTL(subject, i.ttl)
}

// CreateTokenWithTTL signs {sub, exp: now+ttl}. A zero ttl yields a token
// that is already expired at its next verification.
func (i *Issuer) CreateTokenWithTTL(subject string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(i.now().Add(ttl)),
	}
	return jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
}

// VerifyToken checks signature, algorithm and expiry and returns the subject.
// ok is false for malformed, tampered, expired or subject-less tokens.
func (i *Issuer) VerifyToken(raw string) (subject string, ok bool) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}
