package config

import "sync/atomic"

// Store publishes the current Config to concurrent readers. The handler path
// reads it once per request; a reload swaps the whole record atomically, so
// readers always see a complete, validated configuration.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore returns a Store seeded with the given Config.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Current returns the most recently published Config. Never nil.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Swap publishes a new Config, replacing the previous one for all future reads.
func (s *Store) Swap(cfg *Config) {
	s.current.Store(cfg)
}
