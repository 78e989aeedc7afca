package model

import (
	"time"

	"github.com/jacentio/conference/apperr"
	"github.com/jacentio/conference/store"
)

// Session defaults for fields the form leaves empty. The default date is
// the day of creation.
const (
	DefaultDuration  = "00:00"
	DefaultStartTime = "00:00"
)

// Session is a talk within a conference; its key lives under the
// conference's key.
type Session struct {
	Key           *store.Key
	Version       int64
	Name          string
	Highlights    string
	SpeakerID     string
	Duration      string
	StartTime     string
	Date          time.Time
	TypeOfSession SessionType
}

// NewSession builds a session from a creation form. today supplies the
// default date.
func NewSession(key *store.Key, speakerID string, form SessionForm, today time.Time) (*Session, error) {
	if form.Name == "" {
		return nil, apperr.Validation("name", "Session 'name' field required")
	}

	s := &Session{
		Key:        key,
		Name:       form.Name,
		Highlights: form.Highlights,
		SpeakerID:  speakerID,
		Duration:   DefaultDuration,
		StartTime:  DefaultStartTime,
		Date:       time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC),
	}

	var err error
	if form.Duration != "" {
		if s.Duration, err = parseClock("duration", form.Duration); err != nil {
			return nil, err
		}
	}
	if form.StartTime != "" {
		if s.StartTime, err = parseClock("startTime", form.StartTime); err != nil {
			return nil, err
		}
	}
	if form.Date != "" {
		if s.Date, err = parseDate("date", form.Date); err != nil {
			return nil, err
		}
	}
	if s.TypeOfSession, err = ParseSessionType(form.TypeOfSession); err != nil {
		return nil, err
	}
	return s, nil
}

// ConferenceKey returns the key of the session's conference.
func (s *Session) ConferenceKey() *store.Key {
	return s.Key.Parent
}

// Document maps the session to its store document.
func (s *Session) Document() *store.Document {
	doc := &store.Document{Key: s.Key, Version: s.Version}
	doc.Set("name", s.Name)
	doc.Set("highlights", s.Highlights)
	doc.Set("speakerId", s.SpeakerID)
	doc.Set("duration", s.Duration)
	doc.Set("startTime", s.StartTime)
	doc.Set("date", formatDate(s.Date))
	doc.Set("typeOfSession", string(s.TypeOfSession))
	return doc
}

// SessionFromDocument maps a store document to a Session.
func SessionFromDocument(doc *store.Document) *Session {
	s := &Session{
		Key:           doc.Key,
		Version:       doc.Version,
		Name:          doc.String("name"),
		Highlights:    doc.String("highlights"),
		SpeakerID:     doc.String("speakerId"),
		Duration:      doc.String("duration"),
		StartTime:     doc.String("startTime"),
		TypeOfSession: SessionType(doc.String("typeOfSession")),
	}
	if d := doc.String("date"); d != "" {
		s.Date, _ = parseDate("date", d)
	}
	return s
}

// Speaker is identified by display name and keeps a back-reference to the
// sessions it gives.
type Speaker struct {
	Key                     *store.Key
	Version                 int64
	DisplayName             string
	ConfSessionKeysToAttend []string
}

// NewSpeaker returns the speaker lazily created for displayName.
func NewSpeaker(displayName string) *Speaker {
	return &Speaker{Key: SpeakerKey(displayName), DisplayName: displayName}
}

// AddSession records sessionKey in the back-reference list.
func (s *Speaker) AddSession(sessionKey string) {
	if !containsKey(s.ConfSessionKeysToAttend, sessionKey) {
		s.ConfSessionKeysToAttend = append(s.ConfSessionKeysToAttend, sessionKey)
	}
}

// Document maps the speaker to its store document.
func (s *Speaker) Document() *store.Document {
	doc := &store.Document{Key: s.Key, Version: s.Version}
	doc.Set("displayName", s.DisplayName)
	doc.Set("confSessionKeysToAttend", s.ConfSessionKeysToAttend)
	return doc
}

// SpeakerFromDocument maps a store document to a Speaker.
func SpeakerFromDocument(doc *store.Document) *Speaker {
	return &Speaker{
		Key:                     doc.Key,
		Version:                 doc.Version,
		DisplayName:             doc.String("displayName"),
		ConfSessionKeysToAttend: doc.Strings("confSessionKeysToAttend"),
	}
}
