package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/habedi/dogs/client"
	"github.com/rs/zerolog/log"
)

const (
	keyAccessToken  = "dogs:accessToken"
	keyRefreshToken = "dogs:refreshToken"
	keyUser         = "dogs:user"
)

// MemoryStorage keeps values for the lifetime of the process.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

func (s *MemoryStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryStorage) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// FileStorage persists values as a JSON object in a single file readable only by
// the owner. Read and write failures are logged and otherwise ignored; an
// unreadable file behaves as empty.
type FileStorage struct {
	path string
	mu   sync.Mutex
	mem  map[string]string
}

func NewFileStorage(path string) *FileStorage {
	s := &FileStorage{path: path, mem: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to read client state; starting empty")
		}
		return s
	}
	if err := json.Unmarshal(data, &s.mem); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Client state is corrupt; starting empty")
		s.mem = make(map[string]string)
	}
	return s
}

func (s *FileStorage) Path() string { return s.path }

func (s *FileStorage) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem[key]
}

func (s *FileStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[key] = value
	s.flushLocked()
}

func (s *FileStorage) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mem[key]; !ok {
		return
	}
	delete(s.mem, key)
	s.flushLocked()
}

func (s *FileStorage) flushLocked() {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Failed to create client state directory")
		return
	}
	data, err := json.MarshalIndent(s.mem, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode client state")
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write client state")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Failed to replace client state")
	}
}

// tokenStore maps session fields onto Storage keys.
type tokenStore struct {
	s Storage
}

func (t tokenStore) accessToken() string  { return t.s.Get(keyAccessToken) }
func (t tokenStore) refreshToken() string { return t.s.Get(keyRefreshToken) }

func (t tokenStore) setTokens(pair client.TokenPair) {
	t.s.Set(keyAccessToken, pair.AccessToken)
	t.s.Set(keyRefreshToken, pair.RefreshToken)
}

func (t tokenStore) setUser(user client.UserProfile) {
	data, err := json.Marshal(user)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode user profile")
		return
	}
	t.s.Set(keyUser, string(data))
}

// user returns the stored profile, or nil when it is absent or unreadable.
func (t tokenStore) user() *client.UserProfile {
	raw := t.s.Get(keyUser)
	if raw == "" {
		return nil
	}
	var u client.UserProfile
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		log.Warn().Err(err).Msg("Stored user profile is unreadable")
		return nil
	}
	if u.Validate() != nil {
		return nil
	}
	return &u
}

func (t tokenStore) clear() {
	t.s.Remove(keyAccessToken)
	t.s.Remove(keyRefreshToken)
	t.s.Remove(keyUser)
}
