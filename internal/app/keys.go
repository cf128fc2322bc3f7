package app

import "github.com/rihigo/notify/internal/keys"

// KeyMap is the key map shared by the root model and its views.
type KeyMap = keys.KeyMap

// DefaultKeyMap delegates to keys.DefaultKeyMap.
func DefaultKeyMap() *KeyMap {
	return keys.DefaultKeyMap()
}
