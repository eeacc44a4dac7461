// Package auth issues and verifies admin bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/botio91514/gym-backend/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type Token struct {
	Value     string
	ExpiresAt time.Time
}

type Authenticator struct {
	secret     []byte
	issuer     string
	ttl        time.Duration
	adminEmail string
	adminHash  []byte
	clock      clockwork.Clock
}

func NewAuthenticator(cfg config.AuthConfig, clk clockwork.Clock) *Authenticator {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		ttl:        ttl,
		adminEmail: strings.ToLower(strings.TrimSpace(cfg.AdminEmail)),
		adminHash:  []byte(cfg.AdminPasswordHash),
		clock:      clk,
	}
}

// Login checks the admin credentials and issues a signed token.
func (a *Authenticator) Login(email, password string) (Token, error) {
	if len(a.secret) == 0 || a.adminEmail == "" || len(a.adminHash) == 0 {
		return Token{}, ErrNotConfigured
	}

	email = strings.ToLower(strings.TrimSpace(email))
	// bcrypt runs for unknown emails too.
	hashErr := bcrypt.CompareHashAndPassword(a.adminHash, []byte(password))
	if email != a.adminEmail || hashErr != nil {
		return Token{}, ErrInvalidCredentials
	}
	return a.issue(email)
}

func (a *Authenticator) issue(email string) (Token, error) {
	now := a.clock.Now()
	expires := now.Add(a.ttl)
	claims := &Claims{
		Email: email,
		Role:  RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: expires}, nil
}

func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, ErrNotConfigured
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.Role != RoleAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
