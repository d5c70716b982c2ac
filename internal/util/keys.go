package util

import "strings"

// ValidKey reports whether key can be stored. Empty keys are rejected everywhere.
func ValidKey(key string) bool {
	return key != ""
}

// JoinKey returns "<prefix>:<key>", or key unchanged when prefix is empty.
func JoinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

// StripKey reverses JoinKey. ok is false when stored does not carry the prefix.
func StripKey(prefix, stored string) (key string, ok bool) {
	if prefix == "" {
		return stored, true
	}
	return strings.CutPrefix(stored, prefix+":")
}
