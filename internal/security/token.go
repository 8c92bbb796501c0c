package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes the two token roles. Access and refresh tokens are
// never interchangeable.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Sentinel decode failures. Callers translate these into user-facing errors;
// they never cross the service boundary raw.
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// TokenPair is the result of a successful login or refresh. It is handed to
// the caller and never persisted here.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  int64
	RefreshExpiresIn int64
	TokenType        string
}

// TokenPayload is the decoded form of a valid token. TokenID is set only for
// refresh tokens; access tokens stay statelessly verifiable.
type TokenPayload struct {
	SubjectID string
	Kind      TokenKind
	TokenID   string
	ExpiresAt time.Time
}

// TokenCodec mints and validates signed, time-bound token pairs.
type TokenCodec interface {
	GeneratePair(subjectID string) (*TokenPair, error)
	Decode(token string) (*TokenPayload, error)
}

type tokenClaims struct {
	Kind string `json:"type"`
	jwt.RegisteredClaims
}

// JWTCodec implements TokenCodec with HS256-signed JWTs. The clock is
// injectable so expiry behaviour is testable.
type JWTCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewJWTCodec builds a codec with the given signing secret and lifetimes.
func NewJWTCodec(secret string, accessTTL, refreshTTL time.Duration) *JWTCodec {
	return &JWTCodec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (c *JWTCodec) WithClock(now func() time.Time) *JWTCodec {
	c.now = now
	return c
}

// RefreshTTL exposes the refresh lifetime so revocation entries can share it.
func (c *JWTCodec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

// GeneratePair mints an access token and a refresh token for the subject.
// Only the refresh token carries a jti, enabling targeted revocation.
func (c *JWTCodec) GeneratePair(subjectID string) (*TokenPair, error) {
	now := c.now().UTC()

	access, err := c.sign(tokenClaims{
		Kind: string(TokenKindAccess),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := c.sign(tokenClaims{
		Kind: string(TokenKindRefresh),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  int64(c.accessTTL.Seconds()),
		RefreshExpiresIn: int64(c.refreshTTL.Seconds()),
		TokenType:        "Bearer",
	}, nil
}

// Decode verifies the signature, then expiry, and returns the payload.
// A tampered token fails with ErrTokenInvalid even if its claimed expiry
// looks valid; an outdated but well-signed token fails with ErrTokenExpired.
func (c *JWTCodec) Decode(token string) (*TokenPayload, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	kind := TokenKind(claims.Kind)
	if claims.Subject == "" || (kind != TokenKindAccess && kind != TokenKindRefresh) {
		return nil, ErrTokenInvalid
	}
	if claims.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}

	return &TokenPayload{
		SubjectID: claims.Subject,
		Kind:      kind,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (c *JWTCodec) sign(claims tokenClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}
