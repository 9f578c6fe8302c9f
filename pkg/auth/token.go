package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agrimarket/agrimarket-backend/pkg/config"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
)

var signingMethod = jwt.SigningMethodHS256

// Verifier checks HS256 access tokens against the shared secret and issuer.
type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("jwt issuer is required")
	}
	return &Verifier{
		key: []byte(cfg.Secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(cfg.Leeway),
		),
	}, nil
}

func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Signer mints tokens in the identity service's format. Local tooling and
// tests use it; production traffic never does.
type Signer struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

func NewSigner(cfg config.JWTConfig) (*Signer, error) {
	if cfg.Secret == "" || cfg.Issuer == "" {
		return nil, errors.New("jwt secret and issuer are required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return nil, errors.New("jwt expiration minutes must be positive")
	}
	return &Signer{
		key:    []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
	}, nil
}

func (s *Signer) Sign(now time.Time, userID int64, role enums.UserRole) (string, error) {
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	if err := claims.Validate(); err != nil {
		return "", err
	}
	return jwt.NewWithClaims(signingMethod, claims).SignedString(s.key)
}
