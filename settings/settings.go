// Package settings provides the typed key/value configuration store backed
// by the settings table, with a process-local cache so reads never touch the
// database on the hot path.
package settings

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/vibarr/vibarr/db"
	"github.com/vibarr/vibarr/errs"
)

// Store caches every setting in memory. Writes go through the database
// first, then the cache, so the cache always reflects committed state.
type Store struct {
	db     *db.DB
	logger *log.Logger

	mu       sync.RWMutex
	cache    map[string]string
	stale    bool
	onChange []func(keys []string)
}

// New loads all settings, seeding defaults for missing keys. It fails only
// when storage is unreachable; individual lookups never error after that.
func New(database *db.DB, logger *log.Logger) (*Store, error) {
	s := &Store{
		db:     database,
		logger: logger.With("component", "settings"),
	}
	if err := database.SeedSettings(Defaults()); err != nil {
		return nil, fmt.Errorf("seed settings: %w: %v", errs.ErrUnavailable, err)
	}
	if err := s.reload(); err != nil {
		return nil, fmt.Errorf("load settings: %w: %v", errs.ErrUnavailable, err)
	}
	return s, nil
}

func (s *Store) reload() error {
	all, err := s.db.AllSettings()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cache = all
	s.stale = false
	s.mu.Unlock()
	return nil
}

func (s *Store) lookup(key string) (string, bool) {
	s.mu.RLock()
	stale := s.stale
	s.mu.RUnlock()
	if stale {
		if err := s.reload(); err != nil {
			s.logger.Error("settings reload failed, serving cached values", "err", err)
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[key]
	return v, ok
}

// String returns the setting or def when missing or empty.
func (s *Store) String(key, def string) string {
	if v, ok := s.lookup(key); ok && v != "" {
		return v
	}
	return def
}

// Optional returns the setting only when present and non-empty.
func (s *Store) Optional(key string) (string, bool) {
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Bool treats "true", "1" and "yes" (any case) as true. Missing or empty
// keys fall back to def; any other value is false.
func (s *Store) Bool(key string, def bool) bool {
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Int returns the setting parsed as an integer, or def when missing or
// unparseable.
func (s *Store) Int(key string, def int) int {
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Float returns the setting parsed as a float, or def when missing or
// unparseable.
func (s *Store) Float(key string, def float64) float64 {
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// Set writes one key through to storage and the cache.
func (s *Store) Set(key, value string) error {
	if err := s.db.SetSetting(key, value); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()
	s.fireChange([]string{key})
	return nil
}

// SetMany writes a batch atomically, then updates the cache and notifies
// subscribers once with the full key list.
func (s *Store) SetMany(values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	if err := s.db.SetSettings(values); err != nil {
		return err
	}
	keys := make([]string, 0, len(values))
	s.mu.Lock()
	for k, v := range values {
		s.cache[k] = v
		keys = append(keys, k)
	}
	s.mu.Unlock()
	s.fireChange(keys)
	return nil
}

// Invalidate forces a reload from storage on the next read.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// OnChange registers a callback invoked after every successful write with
// the keys that changed. Integration registries hook this to rebuild clients.
func (s *Store) OnChange(fn func(keys []string)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Store) fireChange(keys []string) {
	s.mu.RLock()
	hooks := make([]func([]string), len(s.onChange))
	copy(hooks, s.onChange)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(keys)
	}
}

// All returns a copy of the cached settings with secret values masked,
// for the settings API listing.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.cache))
	for k, v := range s.cache {
		if v != "" && secretKey(k) {
			out[k] = "********"
		} else {
			out[k] = v
		}
	}
	return out
}

func secretKey(key string) bool {
	return strings.Contains(key, "password") ||
		strings.Contains(key, "secret") ||
		strings.Contains(key, "api_key") ||
		strings.Contains(key, "token")
}
