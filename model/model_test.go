package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/conference/apperr"
	"github.com/jacentio/conference/model"
	"github.com/jacentio/conference/store"
)

func intPtr(n int) *int { return &n }

func conferenceKey() *store.Key {
	return store.NewKey(model.KindConference, "1", model.ProfileKey("u1"))
}

func TestNewConference_Defaults(t *testing.T) {
	c, err := model.NewConference(conferenceKey(), "u1", model.ConferenceForm{Name: "GopherCon"})
	require.NoError(t, err)

	assert.Equal(t, "Default City", c.City)
	assert.Equal(t, []string{"Default", "Topic"}, c.Topics)
	assert.Equal(t, 0, c.MaxAttendees)
	assert.Equal(t, 0, c.SeatsAvailable)
	assert.Equal(t, 0, c.Month)
	assert.Equal(t, "u1", c.OrganizerUserID)
	assert.True(t, c.StartDate.IsZero())
}

func TestNewConference_ParsesFields(t *testing.T) {
	c, err := model.NewConference(conferenceKey(), "u1", model.ConferenceForm{
		Name:         "GopherCon",
		City:         "London",
		Topics:       []string{"Go"},
		StartDate:    "2026-06-14T09:00:00Z",
		EndDate:      "2026-06-16",
		MaxAttendees: intPtr(120),
	})
	require.NoError(t, err)

	assert.Equal(t, 6, c.Month)
	assert.Equal(t, 120, c.MaxAttendees)
	assert.Equal(t, 120, c.SeatsAvailable)
	assert.Equal(t, time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC), c.StartDate.UTC())

	view := c.View("Ada")
	assert.Equal(t, "2026-06-14", view.StartDate)
	assert.Equal(t, "2026-06-16", view.EndDate)
	assert.Equal(t, "Ada", view.OrganizerDisplayName)
	assert.Equal(t, conferenceKey().Encode(), view.WebsafeKey)
}

func TestNewConference_Validation(t *testing.T) {
	tests := []struct {
		name string
		form model.ConferenceForm
	}{
		{"missing name", model.ConferenceForm{}},
		{"bad start date", model.ConferenceForm{Name: "x", StartDate: "14/06/2026"}},
		{"bad end date", model.ConferenceForm{Name: "x", EndDate: "soon"}},
		{"negative capacity", model.ConferenceForm{Name: "x", MaxAttendees: intPtr(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.NewConference(conferenceKey(), "u1", tt.form)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}

func TestConference_Apply(t *testing.T) {
	c, err := model.NewConference(conferenceKey(), "u1", model.ConferenceForm{Name: "Old", MaxAttendees: intPtr(10)})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.True(t, c.TakeSeat())
	}

	err = c.Apply(model.ConferenceForm{City: "Paris", StartDate: "2026-03-01", MaxAttendees: intPtr(20)})
	require.NoError(t, err)
	assert.Equal(t, "Old", c.Name)
	assert.Equal(t, "Paris", c.City)
	assert.Equal(t, 3, c.Month)
	assert.Equal(t, 20, c.MaxAttendees)
	assert.Equal(t, 16, c.SeatsAvailable)

	err = c.Apply(model.ConferenceForm{MaxAttendees: intPtr(3)})
	assert.True(t, apperr.IsConflict(err), "got %v", err)
	assert.Equal(t, 20, c.MaxAttendees)

	require.NoError(t, c.Apply(model.ConferenceForm{MaxAttendees: intPtr(4)}))
	assert.Equal(t, 0, c.SeatsAvailable)
	assert.False(t, c.TakeSeat())
}

func TestConference_SeatsStayInRange(t *testing.T) {
	c, err := model.NewConference(conferenceKey(), "u1", model.ConferenceForm{Name: "x", MaxAttendees: intPtr(1)})
	require.NoError(t, err)

	c.ReleaseSeat()
	assert.Equal(t, 1, c.SeatsAvailable)
	assert.True(t, c.TakeSeat())
	assert.False(t, c.TakeSeat())
	assert.Equal(t, 0, c.SeatsAvailable)
}

func TestConference_DocumentRoundTrip(t *testing.T) {
	c, err := model.NewConference(conferenceKey(), "u1", model.ConferenceForm{
		Name:         "GopherCon",
		StartDate:    "2026-06-14",
		MaxAttendees: intPtr(5),
	})
	require.NoError(t, err)
	c.Version = 3

	got := model.ConferenceFromDocument(c.Document())
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Topics, got.Topics)
	assert.Equal(t, c.Month, got.Month)
	assert.Equal(t, c.SeatsAvailable, got.SeatsAvailable)
	assert.True(t, c.StartDate.Equal(got.StartDate))
	assert.True(t, got.EndDate.IsZero())
	assert.Equal(t, int64(3), got.Version)
}

func TestProfile_Lists(t *testing.T) {
	p := model.NewProfile("u1", "ada", "ada@example.com")
	assert.Equal(t, model.TeeShirtNotSpecified, p.TeeShirtSize)
	assert.Equal(t, "u1", p.UserID())

	assert.True(t, p.Attend("k1"))
	assert.False(t, p.Attend("k1"))
	assert.True(t, p.Attend("k2"))
	assert.Equal(t, []string{"k1", "k2"}, p.ConferenceKeysToAttend)
	assert.True(t, p.Leave("k1"))
	assert.False(t, p.Leave("k1"))
	assert.Equal(t, []string{"k2"}, p.ConferenceKeysToAttend)

	assert.True(t, p.Wish("s1"))
	assert.False(t, p.Wish("s1"))
	assert.True(t, p.Unwish("s1"))
	assert.False(t, p.Unwish("s1"))
	assert.Empty(t, p.SessionWishlist)

	got := model.ProfileFromDocument(p.Document())
	assert.Equal(t, p.View(), got.View())
}

func TestProfile_Apply(t *testing.T) {
	p := model.NewProfile("u1", "ada", "ada@example.com")

	require.NoError(t, p.Apply(model.ProfileMiniForm{TeeShirtSize: "M_W"}))
	assert.Equal(t, "ada", p.DisplayName)
	assert.Equal(t, model.TeeShirtMW, p.TeeShirtSize)

	require.NoError(t, p.Apply(model.ProfileMiniForm{DisplayName: "Ada L"}))
	assert.Equal(t, "Ada L", p.DisplayName)

	err := p.Apply(model.ProfileMiniForm{TeeShirtSize: "HUGE"})
	assert.True(t, apperr.IsValidation(err))
}

func TestNewSession_Defaults(t *testing.T) {
	key := store.NewKey(model.KindSession, "9", conferenceKey())
	today := time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

	s, err := model.NewSession(key, "Ada", model.SessionForm{Name: "Intro"}, today)
	require.NoError(t, err)
	assert.Equal(t, "00:00", s.Duration)
	assert.Equal(t, "00:00", s.StartTime)
	assert.Equal(t, model.SessionNotSpecified, s.TypeOfSession)
	assert.Equal(t, "", s.Highlights)
	assert.True(t, s.ConferenceKey().Equal(conferenceKey()))

	view := s.View("Ada")
	assert.Equal(t, "2026-10-16", view.Date)
	assert.Equal(t, "Ada", view.SpeakerID)
}

func TestNewSession_Parsing(t *testing.T) {
	key := store.NewKey(model.KindSession, "9", conferenceKey())

	s, err := model.NewSession(key, "Ada", model.SessionForm{
		Name:          "Deep dive",
		Duration:      "01:30:00",
		StartTime:     "14:05",
		Date:          "2026-06-15",
		TypeOfSession: "WORKSHOP",
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "01:30", s.Duration)
	assert.Equal(t, "14:05", s.StartTime)
	assert.Equal(t, model.SessionWorkshop, s.TypeOfSession)

	got := model.SessionFromDocument(s.Document())
	assert.Equal(t, s.View("Ada"), got.View("Ada"))

	bad := []model.SessionForm{
		{},
		{Name: "x", Duration: "90 minutes"},
		{Name: "x", StartTime: "25:00"},
		{Name: "x", Date: "tomorrow"},
		{Name: "x", TypeOfSession: "PANEL"},
	}
	for _, form := range bad {
		_, err := model.NewSession(key, "Ada", form, time.Now())
		assert.True(t, apperr.IsValidation(err), "form %+v: got %v", form, err)
	}
}

func TestSpeaker(t *testing.T) {
	sp := model.NewSpeaker("Ada Lovelace")
	assert.Equal(t, "Ada Lovelace", sp.Key.ID)

	sp.AddSession("s1")
	sp.AddSession("s1")
	sp.AddSession("s2")
	assert.Equal(t, []string{"s1", "s2"}, sp.ConfSessionKeysToAttend)

	got := model.SpeakerFromDocument(sp.Document())
	assert.Equal(t, sp.DisplayName, got.DisplayName)
	assert.Equal(t, sp.ConfSessionKeysToAttend, got.ConfSessionKeysToAttend)
}

func TestRegistry(t *testing.T) {
	r := model.Registry()
	session := store.NewKey(model.KindSession, "1", conferenceKey())

	assert.NoError(t, r.Validate(session))
	assert.NoError(t, r.Validate(model.SpeakerKey("Ada")))
	assert.ErrorIs(t, r.Validate(store.NewKey(model.KindSession, "1", model.ProfileKey("u1"))), store.ErrInvalidHierarchy)
}

func TestDecodeKey(t *testing.T) {
	key, err := model.DecodeKey("websafeConferenceKey", conferenceKey().Encode(), model.KindConference)
	require.NoError(t, err)
	assert.True(t, key.Equal(conferenceKey()))

	_, err = model.DecodeKey("websafeConferenceKey", "!!not-a-key", model.KindConference)
	assert.True(t, apperr.IsValidation(err))

	_, err = model.DecodeKey("websafeConferenceKey", model.ProfileKey("u1").Encode(), model.KindConference)
	assert.True(t, apperr.IsValidation(err))
}
