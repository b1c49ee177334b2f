package jwt

import (
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/socialimageapp/authentication-api-service/internal/domain"
)

// SessionClaims is the custom payload carried by session tokens alongside
// the registered claim set.
type SessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Generator signs and validates session tokens.
type Generator struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewGenerator constructs a session token generator. The secret must carry
// at least 256 bits of entropy; ttl bounds token lifetime.
func NewGenerator(secret []byte, issuer string, ttl time.Duration) *Generator {
	return &Generator{secret: secret, issuer: issuer, ttl: ttl}
}

// TTL exposes the configured token lifetime.
func (g *Generator) TTL() time.Duration {
	return g.ttl
}

// Sign issues a session token for the user carrying subject id, email, and
// role.
func (g *Generator) Sign(user domain.User) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: g.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:   strconv.FormatInt(user.ID, 10),
		Issuer:    g.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(g.ttl)),
	}
	custom := SessionClaims{Email: user.Email, Role: user.UserType}

	token, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return token, nil
}

// Validate parses and verifies a session token, returning its claim sets.
func (g *Generator) Validate(token string) (*gojwt.Claims, *SessionClaims, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return nil, nil, fmt.Errorf("parse token: %w", err)
	}

	var std gojwt.Claims
	var custom SessionClaims
	if err := parsed.Claims(g.secret, &std, &custom); err != nil {
		return nil, nil, fmt.Errorf("verify token: %w", err)
	}
	if err := std.Validate(gojwt.Expected{Issuer: g.issuer, Time: time.Now().UTC()}); err != nil {
		return nil, nil, fmt.Errorf("validate claims: %w", err)
	}
	return &std, &custom, nil
}

// Subject parses the numeric user id out of validated standard claims.
func Subject(std *gojwt.Claims) (int64, error) {
	id, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse subject: %w", err)
	}
	return id, nil
}
