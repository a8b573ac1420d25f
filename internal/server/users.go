package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrUserExists = errors.New("username already exists")
var ErrInvalidCredentials = errors.New("invalid credentials")

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	hash []byte
}

// UserStore is the in-memory user registry of the reference backend.
type UserStore struct {
	mu     sync.RWMutex
	byID   map[string]*User
	byName map[string]*User
	nextID int
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:   make(map[string]*User),
		byName: make(map[string]*User),
	}
}

// Add registers a user with a bcrypt-hashed password.
func (s *UserStore) Add(name, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; ok {
		return User{}, ErrUserExists
	}
	s.nextID++
	u := &User{
		ID:        fmt.Sprintf("u-%d", s.nextID),
		Name:      name,
		CreatedAt: time.Now(),
		hash:      hash,
	}
	s.byID[u.ID] = u
	s.byName[name] = u
	return *u, nil
}

// Authenticate checks a username/password pair.
func (s *UserStore) Authenticate(name, password string) (User, error) {
	s.mu.RLock()
	u, ok := s.byName[name]
	s.mu.RUnlock()

	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return *u, nil
}

// List returns every registered user, sorted by name.
func (s *UserStore) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *UserStore) Get(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// GenerateJWT mints the access token the client presents on REST calls and
// the channel handshake.
func GenerateJWT(u User, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":   u.ID,
		"user_name": u.Name,
		"exp":       time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken parses and verifies an access token, returning the user's id
// and name.
func ValidateToken(tokenString, secret string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	userID, _ := claims["user_id"].(string)
	userName, _ := claims["user_name"].(string)
	if userID == "" {
		return "", "", errors.New("invalid token claims")
	}
	return userID, userName, nil
}
