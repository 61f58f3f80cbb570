// Package settings persists update-check state across process runs.
//
// A Store is a flat key/value store. Each call is a single read or a single
// write; there are no read-modify-write transactions, so concurrent writers
// from several checkers race and the last write wins.
package settings

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Keys shared by the update checker and the host application.
const (
	KeyCheckForUpdates  = "CheckForUpdates"
	KeyLastCheckTime    = "LastCheckTime"
	KeySkipThisVersion  = "SkipThisVersion"
	KeyUpdateTempDir    = "UpdateTempDir"
	KeyUpdateInterval   = "UpdateInterval"
	KeyAutomaticInstall = "AutomaticInstall"
)

// AllKeys returns every key the checker reads or writes.
func AllKeys() []string {
	return []string{
		KeyCheckForUpdates,
		KeyLastCheckTime,
		KeySkipThisVersion,
		KeyUpdateTempDir,
		KeyUpdateInterval,
		KeyAutomaticInstall,
	}
}

// Store reads and writes string values by key.
type Store interface {
	// Read returns the value for key and whether it was present.
	Read(key string) (string, bool, error)
	// Write stores value under key. An empty value deletes the key.
	Write(key, value string) error
}

// ReadString reads a string value.
func ReadString(s Store, key string) (string, bool, error) {
	return s.Read(key)
}

// ReadBool reads a boolean value, returning def when the key is absent.
func ReadBool(s Store, key string, def bool) (bool, error) {
	v, ok, err := s.Read(key)
	if err != nil || !ok {
		return def, err
	}
	b, err := ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	return b, nil
}

// ParseBool accepts yes/no and on/off besides the strconv.ParseBool forms.
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(v))
}

// ReadInt64 reads an integer value, returning def when the key is absent.
func ReadInt64(s Store, key string, def int64) (int64, error) {
	v, ok, err := s.Read(key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return n, nil
}

// ReadTime reads a unix timestamp, returning the zero time when absent.
func ReadTime(s Store, key string) (time.Time, error) {
	n, err := ReadInt64(s, key, 0)
	if err != nil || n == 0 {
		return time.Time{}, err
	}
	return time.Unix(n, 0), nil
}

// WriteBool writes a boolean value.
func WriteBool(s Store, key string, v bool) error {
	return s.Write(key, strconv.FormatBool(v))
}

// WriteInt64 writes an integer value.
func WriteInt64(s Store, key string, v int64) error {
	return s.Write(key, strconv.FormatInt(v, 10))
}

// WriteTime writes t as a unix timestamp.
func WriteTime(s Store, key string, t time.Time) error {
	return WriteInt64(s, key, t.Unix())
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Read implements Store.
func (m *Memory) Read(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Write implements Store.
func (m *Memory) Write(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == "" {
		delete(m.values, key)
		return nil
	}
	m.values[key] = value
	return nil
}
