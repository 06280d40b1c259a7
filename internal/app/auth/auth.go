// Package auth issues and validates credentials for the option layer API.
// Operators log in with a username/password and receive a signed JWT; the
// token's subject becomes the sender identity on subsequent transitions.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when a login fails.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned when a presented token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")
)

// User is an operator account.
type User struct {
	Username string
	Password string // plain text at construction; hashed immediately
	Role     string
}

// Principal is the verified identity behind a request.
type Principal struct {
	Subject string
	Role    string
}

// Claims is the JWT payload issued on login.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager holds the signing secret and the operator accounts.
type Manager struct {
	secret []byte
	ttl    time.Duration

	mu    sync.RWMutex
	users map[string]userRecord
}

type userRecord struct {
	hash []byte
	role string
}

// NewManager creates a manager signing tokens with secret. Passwords are
// bcrypt-hashed immediately; the plain values are not retained.
func NewManager(secret string, users []User) *Manager {
	m := &Manager{
		secret: []byte(secret),
		ttl:    24 * time.Hour,
		users:  make(map[string]userRecord, len(users)),
	}
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			continue // password exceeds bcrypt length limit; account unusable
		}
		m.users[u.Username] = userRecord{hash: hash, role: u.Role}
	}
	return m
}

// Authenticate verifies the credentials and returns a signed session token.
func (m *Manager) Authenticate(username, password string) (string, error) {
	m.mu.RLock()
	rec, ok := m.users[username]
	m.mu.RUnlock()
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(rec.hash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := &Claims{
		Role: rec.role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    "option-layer",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate verifies a session token and returns the principal it names.
func (m *Manager) Validate(tokenString string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{Subject: claims.Subject, Role: claims.Role}, nil
}
