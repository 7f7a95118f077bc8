// Package options implements the per-server configuration model
// (spec.md §4.G): remote identity, auth, event filters, timeouts, and
// reconnect bounds, held in a thread-safe store.
package options

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ServerOption describes one FreeSWITCH ESL endpoint (spec.md §3).
// (host, port) uniquely identifies an entry.
type ServerOption struct {
	Host     string
	Port     int
	Password string

	// EventFilter is an opaque subscription expression forwarded
	// verbatim to FreeSWITCH as "event plain <EventFilter>" after auth
	// (spec.md §4.G), e.g. "ALL" or "CHANNEL_HANGUP CHANNEL_ANSWER".
	EventFilter string

	// RoutingKey is an application-level label for this server, not
	// interpreted by the wire protocol.
	RoutingKey string

	ReconnectBackoffMin time.Duration
	ReconnectBackoffMax time.Duration
	CommandTimeout      time.Duration
	IdleReadTimeout     time.Duration
}

// Addr returns the canonical "host:port" identity used as the map key
// throughout the client facade.
func (o *ServerOption) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// authRelevant reports whether two options differ in a way that
// requires tearing down and re-authenticating an existing connection
// (spec.md §4.F: "adding an existing entry replaces the option record
// without tearing down the connection unless authentication-relevant
// fields changed").
func (o *ServerOption) authRelevant(other *ServerOption) bool {
	return o.Host != other.Host || o.Port != other.Port || o.Password != other.Password
}

// Default returns a ServerOption with spec.md §4.D's default timeout
// (120s) and the teacher's idle-probe cadence, with conservative
// reconnect bounds (spec.md §4.F: base 1s, cap 60s).
func Default(host string, port int, password string) *ServerOption {
	return &ServerOption{
		Host:                host,
		Port:                port,
		Password:            password,
		EventFilter:         "ALL",
		ReconnectBackoffMin: time.Second,
		ReconnectBackoffMax: 60 * time.Second,
		CommandTimeout:      120 * time.Second,
		IdleReadTimeout:     60 * time.Second,
	}
}

// Load builds a ServerOption from environment variables, falling back to
// sane defaults for a local FreeSWITCH dev instance — the getEnv idiom
// used throughout icegreg-chat-smpl/services/voice/internal/config.
func Load() *ServerOption {
	port, err := strconv.Atoi(getEnv("ESL_PORT", "8021"))
	if err != nil {
		port = 8021
	}
	opt := Default(
		getEnv("ESL_HOST", "127.0.0.1"),
		port,
		getEnv("ESL_PASSWORD", "ClueCon"),
	)
	opt.EventFilter = getEnv("ESL_EVENT_FILTER", opt.EventFilter)
	if v := getEnv("ESL_COMMAND_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opt.CommandTimeout = d
		}
	}
	if v := getEnv("ESL_IDLE_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opt.IdleReadTimeout = d
		}
	}
	return opt
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Store is a thread-safe collection of ServerOption, keyed by Addr()
// (spec.md §4.G).
type Store struct {
	mu    sync.RWMutex
	byKey map[string]*ServerOption
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{byKey: make(map[string]*ServerOption)}
}

// Add inserts or replaces the option for opt.Addr(), reporting whether
// the change is auth-relevant to an already-open connection (spec.md
// §4.F).
func (s *Store) Add(opt *ServerOption) (authChanged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, exists := s.byKey[opt.Addr()]
	s.byKey[opt.Addr()] = opt
	if !exists {
		return true
	}
	return prev.authRelevant(opt)
}

// Remove deletes the option for addr. Idempotent.
func (s *Store) Remove(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byKey, addr)
}

// Get returns the option for addr, if any.
func (s *Store) Get(addr string) (*ServerOption, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opt, ok := s.byKey[addr]
	return opt, ok
}

// Snapshot returns a stable copy of all options, safe to range over
// while concurrent mutations happen on the store (spec.md §4.F:
// "serverOptions() — snapshot (stable under concurrent mutation)").
func (s *Store) Snapshot() []*ServerOption {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ServerOption, 0, len(s.byKey))
	for _, opt := range s.byKey {
		out = append(out, opt)
	}
	return out
}
