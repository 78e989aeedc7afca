package model

import (
	"github.com/jacentio/conference/store"
)

// Profile is an attendee. Its key id is the user id.
type Profile struct {
	Key                    *store.Key
	Version                int64
	DisplayName            string
	MainEmail              string
	TeeShirtSize           TeeShirtSize
	ConferenceKeysToAttend []string
	SessionWishlist        []string
}

// NewProfile returns the profile lazily created for a user on first access.
func NewProfile(userID, nickname, email string) *Profile {
	return &Profile{
		Key:          ProfileKey(userID),
		DisplayName:  nickname,
		MainEmail:    email,
		TeeShirtSize: TeeShirtNotSpecified,
	}
}

// UserID returns the id of the profile's user.
func (p *Profile) UserID() string {
	return p.Key.ID
}

// IsAttending reports whether the profile is registered for conferenceKey.
func (p *Profile) IsAttending(conferenceKey string) bool {
	return containsKey(p.ConferenceKeysToAttend, conferenceKey)
}

// Attend appends conferenceKey to the attend-list. It reports false if the
// key was already present.
func (p *Profile) Attend(conferenceKey string) bool {
	if p.IsAttending(conferenceKey) {
		return false
	}
	p.ConferenceKeysToAttend = append(p.ConferenceKeysToAttend, conferenceKey)
	return true
}

// Leave removes conferenceKey from the attend-list. It reports false if the
// key was not present.
func (p *Profile) Leave(conferenceKey string) bool {
	if !p.IsAttending(conferenceKey) {
		return false
	}
	p.ConferenceKeysToAttend = removeKey(p.ConferenceKeysToAttend, conferenceKey)
	return true
}

// HasWished reports whether sessionKey is on the wishlist.
func (p *Profile) HasWished(sessionKey string) bool {
	return containsKey(p.SessionWishlist, sessionKey)
}

// Wish appends sessionKey to the wishlist, reporting false if present.
func (p *Profile) Wish(sessionKey string) bool {
	if p.HasWished(sessionKey) {
		return false
	}
	p.SessionWishlist = append(p.SessionWishlist, sessionKey)
	return true
}

// Unwish removes sessionKey from the wishlist, reporting false if absent.
func (p *Profile) Unwish(sessionKey string) bool {
	if !p.HasWished(sessionKey) {
		return false
	}
	p.SessionWishlist = removeKey(p.SessionWishlist, sessionKey)
	return true
}

// Document maps the profile to its store document.
func (p *Profile) Document() *store.Document {
	doc := &store.Document{Key: p.Key, Version: p.Version}
	doc.Set("displayName", p.DisplayName)
	doc.Set("mainEmail", p.MainEmail)
	doc.Set("teeShirtSize", string(p.TeeShirtSize))
	doc.Set("conferenceKeysToAttend", p.ConferenceKeysToAttend)
	doc.Set("sessionWishlist", p.SessionWishlist)
	return doc
}

// ProfileFromDocument maps a store document to a Profile.
func ProfileFromDocument(doc *store.Document) *Profile {
	size := TeeShirtSize(doc.String("teeShirtSize"))
	if size == "" {
		size = TeeShirtNotSpecified
	}
	return &Profile{
		Key:                    doc.Key,
		Version:                doc.Version,
		DisplayName:            doc.String("displayName"),
		MainEmail:              doc.String("mainEmail"),
		TeeShirtSize:           size,
		ConferenceKeysToAttend: doc.Strings("conferenceKeysToAttend"),
		SessionWishlist:        doc.Strings("sessionWishlist"),
	}
}
