package store

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Key identifies a document. A key with a Parent belongs to its parent's
// entity group and is returned by ancestor queries rooted at the parent.
type Key struct {
	Kind   string
	ID     string
	Parent *Key
}

// NewKey returns a key of kind and id under parent (nil for a root key).
func NewKey(kind, id string, parent *Key) *Key {
	return &Key{Kind: kind, ID: id, Parent: parent}
}

// Path returns the canonical path of the key, root first
// (e.g. "Profile:u1/Conference:42"). Components are query-escaped so ids
// may contain any character.
func (k *Key) Path() string {
	if k == nil {
		return ""
	}
	var parts []string
	for cur := k; cur != nil; cur = cur.Parent {
		parts = append(parts, url.QueryEscape(cur.Kind)+":"+url.QueryEscape(cur.ID))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Encode returns the opaque URL-safe form of the key handed to callers.
func (k *Key) Encode() string {
	return base64.RawURLEncoding.EncodeToString([]byte(k.Path()))
}

// String implements fmt.Stringer.
func (k *Key) String() string {
	return k.Path()
}

// Root returns the top-most ancestor of k, which identifies its entity group.
func (k *Key) Root() *Key {
	cur := k
	for cur != nil && cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// Equal reports whether k and other identify the same document.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.Path() == other.Path()
}

// HasAncestor reports whether ancestor is k itself or one of its parents.
func (k *Key) HasAncestor(ancestor *Key) bool {
	if ancestor == nil {
		return true
	}
	want := ancestor.Path()
	for cur := k; cur != nil; cur = cur.Parent {
		if cur.Path() == want {
			return true
		}
	}
	return false
}

// DecodeKey parses the output of Key.Encode.
func DecodeKey(encoded string) (*Key, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, encoded)
	}
	key, err := ParsePath(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, encoded)
	}
	return key, nil
}

// ParsePath parses the output of Key.Path.
func ParsePath(path string) (*Key, error) {
	if path == "" {
		return nil, ErrInvalidKey
	}
	var key *Key
	for _, part := range strings.Split(path, "/") {
		kind, id, ok := strings.Cut(part, ":")
		if !ok {
			return nil, ErrInvalidKey
		}
		kind, err := url.QueryUnescape(kind)
		if err != nil {
			return nil, ErrInvalidKey
		}
		id, err = url.QueryUnescape(id)
		if err != nil {
			return nil, ErrInvalidKey
		}
		if kind == "" || id == "" {
			return nil, ErrInvalidKey
		}
		key = NewKey(kind, id, key)
	}
	return key, nil
}
