package client

import "sync"

// Credential is a username and password pair. Either half may be empty
// when it could not be resolved.
type Credential struct {
	Username string
	Password string
}

// IsZero reports whether neither half is set.
func (c Credential) IsZero() bool {
	return c.Username == "" && c.Password == ""
}

// Complete reports whether both halves are set, which is required before
// basic auth is attached to a request.
func (c Credential) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// CredentialStore looks up stored secrets. target is either a full
// repository URL or a bare host; username may be empty when unknown.
type CredentialStore interface {
	Lookup(target, username string) (Credential, bool)
}

// StaticCredentials is an in-memory CredentialStore keyed by target.
type StaticCredentials struct {
	mu      sync.RWMutex
	entries map[string]Credential
}

// NewStaticCredentials creates an empty store.
func NewStaticCredentials() *StaticCredentials {
	return &StaticCredentials{entries: make(map[string]Credential)}
}

// Set stores cred for target.
func (s *StaticCredentials) Set(target string, cred Credential) {
	s.mu.Lock()
	s.entries[target] = cred
	s.mu.Unlock()
}

// Lookup returns the credential stored for target. When username is given
// it must match the stored one.
func (s *StaticCredentials) Lookup(target, username string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.entries[target]
	if !ok || (username != "" && c.Username != username) {
		return Credential{}, false
	}
	return c, true
}
