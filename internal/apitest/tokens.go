package apitest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const tokenIssuer = "hack-or-snooze"

// tokenService issues the session tokens handed out by /signup and /login.
//
// A token is an HS256 JWT whose subject is the username:
//
//	HEADER.PAYLOAD.SIGNATURE
//	{"alg":"HS256"}.{"sub":"alice","iss":"hack-or-snooze","iat":...}.HMAC
//
// Tokens carry no expiry, like the real API's. Revoke rotates the signing
// secret, which invalidates every token issued so far at once.
type tokenService struct {
	mu     sync.RWMutex
	secret []byte
}

func newTokenService() *tokenService {
	return &tokenService{secret: newSecret()}
}

// newSecret joins two xids: 40 URL-safe characters, unique per call.
func newSecret() []byte {
	return []byte(xid.New().String() + xid.New().String())
}

func (s *tokenService) Generate(username string) (string, error) {
	s.mu.RLock()
	secret := s.secret
	s.mu.RUnlock()

	c := jwt.RegisteredClaims{
		Subject:  username,
		Issuer:   tokenIssuer,
		IssuedAt: jwt.NewNumericDate(time.Now()),
		ID:       xid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("apitest: signing token: %w", err)
	}
	return signed, nil
}

// Validate returns the username a token was issued to.
func (s *tokenService) Validate(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", errors.New("apitest: missing token")
	}

	s.mu.RLock()
	secret := s.secret
	s.mu.RUnlock()

	var c jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &c,
		func(token *jwt.Token) (any, error) {
			return secret, nil
		},
		// Pinning the method rejects "alg":"none" and RSA/HMAC confusion.
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return "", fmt.Errorf("apitest: invalid token: %w", err)
	}
	if c.Subject == "" {
		return "", errors.New("apitest: token has no subject")
	}
	return c.Subject, nil
}

func (s *tokenService) Revoke() {
	s.mu.Lock()
	s.secret = newSecret()
	s.mu.Unlock()
}
