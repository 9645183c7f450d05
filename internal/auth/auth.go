// Package auth validates the bearer credential a client presents in its
// first envelope. Tokens are issued by the separate login service; this
// package only verifies them (and can sign them for tooling and tests).
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any credential that must be rejected.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified owner of a credential.
type Identity struct {
	UserID   models.UserID
	Username string
}

// Verifier turns a credential into an Identity. Implementations must be
// safe for concurrent use and hold no per-connection state.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Claims mirrors the payload written by the login service.
type Claims struct {
	UserID   models.UserID `json:"userId"`
	Username string        `json:"username"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HMAC-signed JWTs.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier builds a verifier for the given shared secret. When issuer
// is non-empty the "iss" claim must match it.
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
	}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: empty credential", ErrInvalidToken)
	}

	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = models.UserID(claims.Subject)
	}
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: missing user id claim", ErrInvalidToken)
	}

	return Identity{UserID: userID, Username: claims.Username}, nil
}

// Signer issues tokens the JWTVerifier accepts.
type Signer struct {
	secret []byte
	issuer string
	nowFn  func() time.Time
}

// NewSigner creates a Signer using HS256.
func NewSigner(secret, issuer string) *Signer {
	return &Signer{secret: []byte(secret), issuer: issuer, nowFn: time.Now}
}

// Sign returns a token for id that expires after ttl. A zero ttl produces a
// token without an expiry.
func (s *Signer) Sign(id Identity, ttl time.Duration) (string, error) {
	now := s.nowFn()
	claims := Claims{
		UserID:   id.UserID,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.UserID.String(),
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
