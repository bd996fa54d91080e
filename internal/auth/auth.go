// Package auth holds the staff credential table and the session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionTTL is fixed; there is no refresh.
const SessionTTL = 24 * time.Hour

type Role string

const (
	RoleManager Role = "manager"
	RoleOwner   Role = "owner"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrRevoked            = errors.New("session logged out")
)

type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Entry is one row of the credential table before hashing.
type Entry struct {
	Username string
	Role     Role
	Password string
}

// Table is the fixed set of staff accounts. Passwords are kept only as
// bcrypt hashes.
type Table struct {
	users map[string]account
	// dummy is compared against when the username is unknown.
	dummy []byte
}

type account struct {
	role Role
	hash []byte
}

// NewTable hashes the entries. Entries without a password are skipped, so
// an account can be disabled by leaving its password unset.
func NewTable(cost int, entries ...Entry) (*Table, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	t := &Table{users: map[string]account{}}
	for _, e := range entries {
		name := strings.ToLower(strings.TrimSpace(e.Username))
		if name == "" || e.Password == "" {
			continue
		}
		h, err := bcrypt.GenerateFromPassword([]byte(e.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", name, err)
		}
		t.users[name] = account{role: e.Role, hash: h}
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)
	if err != nil {
		return nil, err
	}
	t.dummy = dummy
	return t, nil
}

func (t *Table) Len() int { return len(t.users) }

func (t *Table) Verify(username, password string) (User, error) {
	name := strings.ToLower(strings.TrimSpace(username))
	acc, ok := t.users[name]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(t.dummy, []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return User{Username: name, Role: acc.role}, nil
}

type Session struct {
	User
	ID        string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and checks HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) Issue(u User) (string, Session, error) {
	now := i.now().Truncate(time.Second)
	s := Session{User: u, ID: uuid.NewString(), IssuedAt: now, ExpiresAt: now.Add(i.ttl)}
	c := claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			ID:        s.ID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", Session{}, err
	}
	return tok, s, nil
}

func (i *Issuer) Parse(token string) (Session, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" || c.ID == "" {
		return Session{}, ErrInvalidToken
	}
	s := Session{User: User{Username: c.Subject, Role: c.Role}, ID: c.ID}
	if c.IssuedAt != nil {
		s.IssuedAt = c.IssuedAt.Time
	}
	s.ExpiresAt = c.ExpiresAt.Time
	return s, nil
}

// Revoker remembers logged-out sessions until they expire.
type Revoker interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// MemoryRevoker is used when no Redis is configured.
type MemoryRevoker struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{ids: map[string]time.Time{}, now: time.Now}
}

func (m *MemoryRevoker) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, until := range m.ids {
		if now.After(until) {
			delete(m.ids, k)
		}
	}
	if ttl > 0 {
		m.ids[id] = now.Add(ttl)
	}
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.ids[id]
	return ok && m.now().Before(until), nil
}
