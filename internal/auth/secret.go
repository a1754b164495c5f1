package auth

import (
	"crypto/subtle"
	"sync/atomic"
)

// SharedSecret holds the internal ingress secret. It can be rotated while
// requests are being checked against it.
type SharedSecret struct {
	value atomic.Pointer[[]byte]
}

// NewSharedSecret creates a holder for secret.
func NewSharedSecret(secret string) *SharedSecret {
	s := &SharedSecret{}
	s.Set(secret)
	return s
}

// Set replaces the active secret.
func (s *SharedSecret) Set(secret string) {
	b := []byte(secret)
	s.value.Store(&b)
}

// Matches reports whether candidate equals the active secret, in constant
// time with respect to the content. An empty secret never matches.
func (s *SharedSecret) Matches(candidate string) bool {
	current := s.value.Load()
	if current == nil || len(*current) == 0 || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare(*current, []byte(candidate)) == 1
}
