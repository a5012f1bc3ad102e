package app

import "github.com/nhle/mailassist/internal/keys"

// KeyMap is re-exported from the keys package so callers that only import
// app can build help views.
type KeyMap = keys.KeyMap

// DefaultKeyMap delegates to keys.DefaultKeyMap.
func DefaultKeyMap() *KeyMap {
	return keys.DefaultKeyMap()
}
