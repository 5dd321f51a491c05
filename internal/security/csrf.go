/**
 * @description
 * This file implements anti-forgery tokens. A token is issued per session,
 * must accompany every state-changing form submission, and is rotated once a
 * submission succeeds.
 */
package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const (
	csrfTokenBytes = 32
	// CSRFTokenLength is the hex-encoded token length.
	CSRFTokenLength = csrfTokenBytes * 2

	DefaultCSRFTokenTTL = time.Hour
)

// TokenStore holds the current anti-forgery token of each session.
type TokenStore interface {
	Put(ctx context.Context, session, token string, ttl time.Duration) error
	Get(ctx context.Context, session string) (string, bool, error)
	Delete(ctx context.Context, session string) error
}

// CSRFManager issues and checks anti-forgery tokens.
type CSRFManager struct {
	store  TokenStore
	ttl    time.Duration
	random io.Reader
}

func NewCSRFManager(store TokenStore, ttl time.Duration) *CSRFManager {
	if ttl <= 0 {
		ttl = DefaultCSRFTokenTTL
	}
	return &CSRFManager{store: store, ttl: ttl, random: rand.Reader}
}

// Issue creates a fresh token for session, replacing any previous one.
func (m *CSRFManager) Issue(ctx context.Context, session string) (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	token := hex.EncodeToString(buf)
	if err := m.store.Put(ctx, session, token, m.ttl); err != nil {
		return "", fmt.Errorf("store csrf token: %w", err)
	}
	return token, nil
}

// Validate checks token against the one issued for session.
func (m *CSRFManager) Validate(ctx context.Context, session, token string) error {
	if len(token) != CSRFTokenLength {
		return Rejected("csrf token malformed")
	}
	stored, ok, err := m.store.Get(ctx, session)
	if err != nil {
		return fmt.Errorf("load csrf token: %w", err)
	}
	if !ok {
		return Rejected("csrf token missing for session")
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return Rejected("csrf token mismatch")
	}
	return nil
}

// Rotate replaces the session's token after a successful submission.
func (m *CSRFManager) Rotate(ctx context.Context, session string) (string, error) {
	return m.Issue(ctx, session)
}

// Clear drops the session's token.
func (m *CSRFManager) Clear(ctx context.Context, session string) error {
	return m.store.Delete(ctx, session)
}
