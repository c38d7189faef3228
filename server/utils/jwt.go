package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"game-bid-war/server/constant"
	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

// Claims identify the user a token was issued to by its subject.
type Claims struct {
	jwt.RegisteredClaims
	Wallet string `json:"wallet,omitempty"`
}

// TokenVerifier checks HMAC signed tokens. Issuing belongs to the auth
// service; Issue exists for tests and local tooling.
type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenVerifier(secret, issuer string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &TokenVerifier{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Issue creates a token for subject valid for ttl.
func (v *TokenVerifier) Issue(subject, wallet string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := v.now()
	claims := Claims{
		Wallet: wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify checks signature, issuer and expiry and returns the claims.
// Tokens without a subject or an expiry are rejected.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, constant.BearerPrefix))
	if tokenString == "" {
		return nil, constant.TokenNotFoundError
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.secretFunc, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", constant.UnauthorizedError, err)
	}

	claims, ok := token.Claims.(*Claims)
	switch {
	case !ok || !token.Valid:
		return nil, fmt.Errorf("%w: couldn't parse this token", constant.UnauthorizedError)
	case claims.ExpiresAt == nil:
		return nil, fmt.Errorf("%w: token has no expiry", constant.UnauthorizedError)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: token has no subject", constant.UnauthorizedError)
	}
	return claims, nil
}

func (v *TokenVerifier) secretFunc(*jwt.Token) (interface{}, error) {
	return v.secret, nil
}
