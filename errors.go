package main

import "github.com/pkg/errors"

// Store-layer error taxonomy. KeyNotFound and KeyExpired resolve to a
// null-bulk reply at the dispatcher; StoreNotInitialized is a
// programming error with no recovery; InvalidTTL is treated leniently
// as "no expiry" wherever it could occur.
var (
	ErrKeyNotFound         = errors.New("key not found")
	ErrKeyExpired          = errors.New("key expired")
	ErrStoreNotInitialized = errors.New("store not initialized")
	ErrInvalidTTL          = errors.New("invalid ttl")
)

// wrapStoreErr annotates a sentinel with the key it applies to while
// preserving errors.Is/As against the sentinel.
func wrapStoreErr(sentinel error, key string) error {
	return errors.Wrapf(sentinel, "key %q", key)
}
