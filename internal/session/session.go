// Package session persists the bearer token and decodes the identity it carries.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/offline-pay/offline_pay/internal/auth"
	"github.com/offline-pay/offline_pay/internal/kvstore"
)

// ErrNoSession is returned when no token is stored.
var ErrNoSession = errors.New("no active session")

// Session is the decoded view of a stored token.
type Session struct {
	Token    string
	Name     string
	Num      string
	IssuedAt time.Time
}

// Decode reads the claims without verifying the signature. The client has no
// key to verify with; the backend rejects forged tokens on every call.
func Decode(token string) (Session, error) {
	var claims auth.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Session{}, fmt.Errorf("decode token: %w", err)
	}
	if claims.Num == "" {
		return Session{}, errors.New("decode token: missing num claim")
	}
	s := Session{Token: token, Name: claims.Name, Num: claims.Num}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	return s, nil
}

// Store keeps the token under kvstore.KeyToken.
type Store struct {
	kv kvstore.Store
}

// NewStore builds a session store.
func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Save decodes and persists token.
func (s *Store) Save(ctx context.Context, token string) (Session, error) {
	sess, err := Decode(token)
	if err != nil {
		return Session{}, err
	}
	if err := s.kv.Set(ctx, kvstore.KeyToken, token); err != nil {
		return Session{}, fmt.Errorf("persist token: %w", err)
	}
	return sess, nil
}

// Load returns the stored session.
func (s *Store) Load(ctx context.Context) (Session, error) {
	token, err := s.kv.Get(ctx, kvstore.KeyToken)
	if errors.Is(err, kvstore.ErrNotFound) || (err == nil && token == "") {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	return Decode(token)
}

// Clear removes the token. Cached balance and log stay on the device.
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, kvstore.KeyToken)
}
