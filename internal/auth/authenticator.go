// Package auth issues and verifies admin session tokens for the single
// configured admin identity.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when the email or password is wrong.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrUnauthorized is returned for a missing, malformed or expired token.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrMissingCredentials is returned when email or password is blank.
	ErrMissingCredentials = errors.New("auth: email and password are required")
)

const defaultTokenTTL = 8 * time.Hour

// Config describes the admin identity and token settings.
type Config struct {
	Email    string
	Password string // plain text or a bcrypt hash ("$2...")
	Secret   string
	TTL      time.Duration
}

// Token is an issued session token.
type Token struct {
	Value     string
	Email     string
	ExpiresAt time.Time
}

// Identity is the verified subject of a token.
type Identity struct {
	Email     string
	ExpiresAt time.Time
}

// Verifier checks a bearer token.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Authenticator checks admin credentials and signs HS256 tokens.
type Authenticator struct {
	email    string
	password string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

var _ Verifier = (*Authenticator)(nil)

// NewAuthenticator validates cfg and builds an Authenticator.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: signing secret required")
	}
	if strings.TrimSpace(cfg.Email) == "" || cfg.Password == "" {
		return nil, errors.New("auth: admin email and password required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Authenticator{
		email:    strings.TrimSpace(cfg.Email),
		password: cfg.Password,
		secret:   []byte(cfg.Secret),
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Authenticate checks the credentials and issues a token on success.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (Token, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Token{}, ErrMissingCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(a.email)) == 1
	passwordOK := a.checkPassword(password)
	if !emailOK || !passwordOK {
		return Token{}, ErrInvalidCredentials
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   a.email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Token{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return Token{Value: signed, Email: a.email, ExpiresAt: expires}, nil
}

func (a *Authenticator) checkPassword(password string) bool {
	if strings.HasPrefix(a.password, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(a.password), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
}

// Verify parses token and returns the admin identity it was issued for.
func (a *Authenticator) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthorized
	}
	if claims.Subject != a.email {
		return Identity{}, ErrUnauthorized
	}
	return Identity{Email: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", ErrMissingCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}
