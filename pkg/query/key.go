package query

import (
	"fmt"
	"net/url"
	"strings"
)

// Key identifies a cache entry, e.g. {"work-pools", "details", "default-pool"}.
type Key []string

// Hash is the canonical string form: path-escaped parts joined by "/".
func (k Key) Hash() string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (k Key) String() string { return k.Hash() }

// HasPrefix reports whether prefix matches the leading parts of k. An empty prefix matches everything.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ParseKey is the inverse of Hash.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, nil
	}
	raw := strings.Split(s, "/")
	k := make(Key, len(raw))
	for i, p := range raw {
		part, err := url.PathUnescape(p)
		if err != nil {
			return nil, fmt.Errorf("invalid key part %q: %w", p, err)
		}
		k[i] = part
	}
	return k, nil
}
