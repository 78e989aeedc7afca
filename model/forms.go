package model

// ConferenceForm carries the caller-supplied fields of a conference create
// or update. Empty fields are left alone on update; MaxAttendees is a
// pointer so that an explicit 0 can be told apart from "not given".
type ConferenceForm struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	City         string   `json:"city,omitempty"`
	StartDate    string   `json:"startDate,omitempty"`
	EndDate      string   `json:"endDate,omitempty"`
	MaxAttendees *int     `json:"maxAttendees,omitempty"`
}

// ConferenceView is the outbound form of a conference.
type ConferenceView struct {
	WebsafeKey           string   `json:"websafeKey"`
	Name                 string   `json:"name"`
	Description          string   `json:"description,omitempty"`
	OrganizerUserID      string   `json:"organizerUserId"`
	OrganizerDisplayName string   `json:"organizerDisplayName,omitempty"`
	Topics               []string `json:"topics"`
	City                 string   `json:"city"`
	StartDate            string   `json:"startDate,omitempty"`
	EndDate              string   `json:"endDate,omitempty"`
	Month                int      `json:"month"`
	MaxAttendees         int      `json:"maxAttendees"`
	SeatsAvailable       int      `json:"seatsAvailable"`
}

// View maps c to its outbound form.
func (c *Conference) View(organizerDisplayName string) ConferenceView {
	return ConferenceView{
		WebsafeKey:           c.Key.Encode(),
		Name:                 c.Name,
		Description:          c.Description,
		OrganizerUserID:      c.OrganizerUserID,
		OrganizerDisplayName: organizerDisplayName,
		Topics:               append([]string(nil), c.Topics...),
		City:                 c.City,
		StartDate:            formatDate(c.StartDate),
		EndDate:              formatDate(c.EndDate),
		Month:                c.Month,
		MaxAttendees:         c.MaxAttendees,
		SeatsAvailable:       c.SeatsAvailable,
	}
}

// ProfileMiniForm carries the user-editable profile fields.
type ProfileMiniForm struct {
	DisplayName  string `json:"displayName,omitempty"`
	TeeShirtSize string `json:"teeShirtSize,omitempty"`
}

// ProfileView is the outbound form of a profile.
type ProfileView struct {
	DisplayName            string   `json:"displayName"`
	MainEmail              string   `json:"mainEmail"`
	TeeShirtSize           string   `json:"teeShirtSize"`
	ConferenceKeysToAttend []string `json:"conferenceKeysToAttend"`
	SessionWishlist        []string `json:"sessionWishlist"`
}

// View maps p to its outbound form.
func (p *Profile) View() ProfileView {
	return ProfileView{
		DisplayName:            p.DisplayName,
		MainEmail:              p.MainEmail,
		TeeShirtSize:           string(p.TeeShirtSize),
		ConferenceKeysToAttend: append([]string{}, p.ConferenceKeysToAttend...),
		SessionWishlist:        append([]string{}, p.SessionWishlist...),
	}
}

// Apply copies the non-empty fields of form onto p.
func (p *Profile) Apply(form ProfileMiniForm) error {
	if form.TeeShirtSize != "" {
		size, err := ParseTeeShirtSize(form.TeeShirtSize)
		if err != nil {
			return err
		}
		p.TeeShirtSize = size
	}
	if form.DisplayName != "" {
		p.DisplayName = form.DisplayName
	}
	return nil
}

// SessionForm carries the caller-supplied fields of a new session.
type SessionForm struct {
	Name               string `json:"name"`
	Highlights         string `json:"highlights,omitempty"`
	SpeakerDisplayName string `json:"speakerDisplayName"`
	Duration           string `json:"duration,omitempty"`
	TypeOfSession      string `json:"typeOfSession,omitempty"`
	Date               string `json:"date,omitempty"`
	StartTime          string `json:"startTime,omitempty"`
}

// SessionView is the outbound form of a session.
type SessionView struct {
	WebsafeKey         string `json:"websafeKey"`
	Name               string `json:"name"`
	Highlights         string `json:"highlights"`
	SpeakerID          string `json:"speakerId"`
	SpeakerDisplayName string `json:"speakerDisplayName,omitempty"`
	Duration           string `json:"duration"`
	TypeOfSession      string `json:"typeOfSession"`
	Date               string `json:"date"`
	StartTime          string `json:"startTime"`
}

// View maps s to its outbound form.
func (s *Session) View(speakerDisplayName string) SessionView {
	return SessionView{
		WebsafeKey:         s.Key.Encode(),
		Name:               s.Name,
		Highlights:         s.Highlights,
		SpeakerID:          s.SpeakerID,
		SpeakerDisplayName: speakerDisplayName,
		Duration:           s.Duration,
		TypeOfSession:      string(s.TypeOfSession),
		Date:               formatDate(s.Date),
		StartTime:          s.StartTime,
	}
}
