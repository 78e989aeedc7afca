// Package model defines the conference entities, their store documents and
// their wire forms. Every mapping is an explicit per-field copy.
package model

import (
	"fmt"

	"github.com/jacentio/conference/apperr"
	"github.com/jacentio/conference/store"
)

// Document kinds.
const (
	KindProfile    = "Profile"
	KindConference = "Conference"
	KindSession    = "ConfSession"
	KindSpeaker    = "ConfSpeaker"
)

// Registry returns the kind hierarchy: conferences live under their
// organizer's profile and sessions under their conference. Profiles and
// speakers are roots.
func Registry() *store.Registry {
	r := store.NewRegistry()
	r.RegisterRoot(KindProfile)
	r.RegisterRoot(KindSpeaker)
	r.Register(store.Relationship{ParentKind: KindProfile, ChildKind: KindConference})
	r.Register(store.Relationship{ParentKind: KindConference, ChildKind: KindSession})
	return r
}

// ProfileKey returns the key of the profile of userID.
func ProfileKey(userID string) *store.Key {
	return store.NewKey(KindProfile, userID, nil)
}

// SpeakerKey returns the key of the speaker called displayName. Speakers are
// identified by display name, so two speakers sharing a name share a
// document.
func SpeakerKey(displayName string) *store.Key {
	return store.NewKey(KindSpeaker, displayName, nil)
}

// DecodeKey parses an encoded key supplied by a caller in field and checks
// that it names a document of kind. Malformed keys are validation errors.
func DecodeKey(field, encoded, kind string) (*store.Key, error) {
	key, err := store.DecodeKey(encoded)
	if err != nil {
		return nil, apperr.Validation(field, fmt.Sprintf("malformed key %q", encoded))
	}
	if key.Kind != kind {
		return nil, apperr.Validation(field, fmt.Sprintf("key %q is not a %s key", encoded, kind))
	}
	return key, nil
}

// containsKey reports whether keys holds key.
func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// removeKey returns keys without key.
func removeKey(keys []string, key string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}
